package types

import (
	"strings"
	"time"
)

// PropertyStatus is the moderation state of a listing.
type PropertyStatus string

const (
	StatusPending  PropertyStatus = "pending"
	StatusApproved PropertyStatus = "approved"
	StatusRejected PropertyStatus = "rejected"
	StatusSold     PropertyStatus = "sold"
	StatusRented   PropertyStatus = "rented"
	StatusInactive PropertyStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSold, StatusRented, StatusInactive:
		return true
	}
	return false
}

// ListingType is the kind of transaction offered.
type ListingType string

const (
	ListingSale      ListingType = "sale"
	ListingRent      ListingType = "rent"
	ListingDailyRent ListingType = "dailyRent"
)

func (t ListingType) Valid() bool {
	switch t {
	case ListingSale, ListingRent, ListingDailyRent:
		return true
	}
	return false
}

type Category string

const (
	CategoryHouse     Category = "house"
	CategoryApartment Category = "apartment"
	CategoryVilla     Category = "villa"
	CategoryLand      Category = "land"
	CategoryFarm      Category = "farm"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryHouse, CategoryApartment, CategoryVilla, CategoryLand, CategoryFarm:
		return true
	}
	return false
}

// MediaKind selects the media list of a property.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Property is a real-estate listing owned by exactly one user.
//
// IsPublished is true iff Status is approved. The pair is only ever written
// together by the moderation transitions.
type Property struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Type               ListingType      `json:"type"`
	Category           Category         `json:"category"`
	Price              float64          `json:"price"`
	Area               float64          `json:"area"`
	Rooms              int              `json:"rooms"`
	Bathrooms          int              `json:"bathrooms"`
	Location           PropertyLocation `json:"location"`
	Features           []string         `json:"features"`
	AdditionalFeatures string           `json:"additionalFeatures,omitempty"`
	Images             []Media          `json:"images"`
	Videos             []Media          `json:"videos"`

	// OwnerID never changes after creation.
	OwnerID string        `json:"ownerId"`
	Owner   *OwnerSummary `json:"owner,omitempty"`

	Status      PropertyStatus `json:"status"`
	IsPublished bool           `json:"isPublished"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
	Featured    bool           `json:"featured"`

	Stats         PropertyStats  `json:"stats"`
	DailyRentInfo *DailyRentInfo `json:"dailyRentInfo,omitempty"`
	FarmInfo      *FarmInfo      `json:"farmInfo,omitempty"`

	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"averageRating"`
	TotalReviews  int      `json:"totalReviews"`

	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	SoldAt     *time.Time `json:"soldDate,omitempty"`
	SoldTo     string     `json:"soldTo,omitempty"`
	Tags       []string   `json:"tags"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Visible reports whether the property may appear in public listings.
func (p Property) Visible() bool {
	return p.Status == StatusApproved && p.IsPublished
}

// State extracts the moderation-controlled fields of p.
func (p Property) State() PropertyState {
	return PropertyState{
		Status:      p.Status,
		IsPublished: p.IsPublished,
		PublishedAt: p.PublishedAt,
		SoldAt:      p.SoldAt,
		SoldTo:      p.SoldTo,
		UpdatedAt:   p.UpdatedAt,
	}
}

// WithState returns a copy of p carrying state.
func (p Property) WithState(state PropertyState) Property {
	p.Status = state.Status
	p.IsPublished = state.IsPublished
	p.PublishedAt = state.PublishedAt
	p.SoldAt = state.SoldAt
	p.SoldTo = state.SoldTo
	p.UpdatedAt = state.UpdatedAt
	return p
}

// PropertyState is the set of fields owned by the moderation flow. Stores
// persist it in a single write.
type PropertyState struct {
	Status      PropertyStatus
	IsPublished bool
	PublishedAt *time.Time
	SoldAt      *time.Time
	SoldTo      string
	UpdatedAt   time.Time
}

type PropertyLocation struct {
	City         string       `json:"city,omitempty"`
	District     string       `json:"district,omitempty"`
	Neighborhood string       `json:"neighborhood,omitempty"`
	Address      string       `json:"address,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// FullAddress joins the non-empty location parts, most general first.
func (l PropertyLocation) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{l.City, l.District, l.Neighborhood, l.Address} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " - ")
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Media references an image or video held in object storage.
type Media struct {
	URL        string    `json:"url"`
	Key        string    `json:"key,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	IsMain     bool      `json:"isMain,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type PropertyStats struct {
	Views     int64 `json:"views"`
	Contacts  int64 `json:"contacts"`
	Favorites int64 `json:"favorites"`
	Shares    int64 `json:"shares"`
}

type DailyRentInfo struct {
	MinDays       int            `json:"minDays"`
	MaxDays       int            `json:"maxDays"`
	AvailableDays []AvailableDay `json:"availableDays,omitempty"`
	Rules         string         `json:"rules,omitempty"`
}

type AvailableDay struct {
	Date        time.Time `json:"date"`
	IsAvailable bool      `json:"isAvailable"`
	BookedBy    string    `json:"bookedBy,omitempty"`
}

type FarmInfo struct {
	HasWater       bool `json:"hasWater"`
	HasElectricity bool `json:"hasElectricity"`
	HasParking     bool `json:"hasParking"`
	HasRestroom    bool `json:"hasRestroom"`
	HasKitchen     bool `json:"hasKitchen"`
	HasBBQ         bool `json:"hasBBQ"`
	HasPlayground  bool `json:"hasPlayground"`
	HasPool        bool `json:"hasPool"`
	MaxCapacity    int  `json:"maxCapacity"`
}

// Review is a rating left by a user on a published property.
type Review struct {
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PropertyDraft carries the client-writable fields of a new listing.
// Status and publish fields have no place here.
type PropertyDraft struct {
	Title              string
	Description        string
	Type               ListingType
	Category           Category
	Price              float64
	Area               float64
	Rooms              int
	Bathrooms          int
	Location           PropertyLocation
	Features           []string
	AdditionalFeatures string
	Images             []Media
	Videos             []Media
	DailyRentInfo      *DailyRentInfo
	FarmInfo           *FarmInfo
	ExpiryDate         *time.Time
	Tags               []string
}

// PropertyPatch is an owner update. Nil fields are left untouched; status,
// publish flag and owner cannot be expressed.
type PropertyPatch struct {
	Title              *string
	Description        *string
	Type               *ListingType
	Category           *Category
	Price              *float64
	Area               *float64
	Rooms              *int
	Bathrooms          *int
	Location           *PropertyLocation
	Features           *[]string
	AdditionalFeatures *string
	DailyRentInfo      *DailyRentInfo
	FarmInfo           *FarmInfo
	ExpiryDate         *time.Time
	Tags               *[]string
}

// ApplyTo writes the non-nil fields of patch into p.
func (patch PropertyPatch) ApplyTo(p *Property) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Area != nil {
		p.Area = *patch.Area
	}
	if patch.Rooms != nil {
		p.Rooms = *patch.Rooms
	}
	if patch.Bathrooms != nil {
		p.Bathrooms = *patch.Bathrooms
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Features != nil {
		p.Features = *patch.Features
	}
	if patch.AdditionalFeatures != nil {
		p.AdditionalFeatures = *patch.AdditionalFeatures
	}
	if patch.DailyRentInfo != nil {
		p.DailyRentInfo = patch.DailyRentInfo
	}
	if patch.FarmInfo != nil {
		p.FarmInfo = patch.FarmInfo
	}
	if patch.ExpiryDate != nil {
		p.ExpiryDate = patch.ExpiryDate
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
}

// Sort keys accepted by property listings.
const (
	SortCreatedAt = "createdAt"
	SortPrice     = "price"
	SortArea      = "area"
	SortViews     = "views"
)

// PropertyFilter narrows property listings. PublicOnly forces the
// approved-and-published visibility rule regardless of Status.
type PropertyFilter struct {
	PublicOnly bool
	Status     PropertyStatus
	OwnerID    string
	Type       ListingType
	Category   Category
	City       string
	District   string
	MinPrice   *float64
	MaxPrice   *float64
	MinArea    *float64
	MaxArea    *float64
	Rooms      *int
	Bathrooms  *int
	Features   []string
	Query      string
	SortBy     string
	SortAsc    bool
}

// PropertyCounts aggregates listing numbers for dashboards.
type PropertyCounts struct {
	Total     int                 `json:"total"`
	Published int                 `json:"published"`
	Pending   int                 `json:"pending"`
	Approved  int                 `json:"approved"`
	Rejected  int                 `json:"rejected"`
	Views     int64               `json:"views"`
	ByType    map[ListingType]int `json:"byType"`
}
