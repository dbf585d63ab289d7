package mq

// PropertyEvent is the payload of the property.* channels.
type PropertyEvent struct {
	PropertyID  string `json:"propertyId"`
	OwnerID     string `json:"ownerId"`
	ActorID     string `json:"actorId,omitempty"`
	Status      string `json:"status"`
	IsPublished bool   `json:"isPublished"`
}

// UserEvent is the payload of the user.* channels.
type UserEvent struct {
	UserID   string `json:"userId"`
	ActorID  string `json:"actorId,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive bool   `json:"isActive"`
}
