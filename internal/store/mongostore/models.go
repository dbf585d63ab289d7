package mongostore

import (
	"time"

	"github.com/darigo/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDocument struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	Name         string              `bson:"name"`
	Email        string              `bson:"email"`
	Phone        string              `bson:"phone"`
	Role         types.Role          `bson:"userType"`
	PasswordHash string              `bson:"password"`
	IsActive     bool                `bson:"isActive"`
	IsVerified   bool                `bson:"isVerified"`
	AgencyInfo   *types.AgencyInfo   `bson:"agencyInfo,omitempty"`
	ProfileImage string              `bson:"profileImage,omitempty"`
	Location     *types.UserLocation `bson:"location,omitempty"`
	LastLoginAt  *time.Time          `bson:"lastLogin,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt"`
}

func toUserDocument(u types.User) userDocument {
	return userDocument{
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsVerified:   u.IsVerified,
		AgencyInfo:   u.AgencyInfo,
		ProfileImage: u.ProfileImage,
		Location:     u.Location,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) toDomain() types.User {
	return types.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		Role:         d.Role,
		PasswordHash: d.PasswordHash,
		IsActive:     d.IsActive,
		IsVerified:   d.IsVerified,
		AgencyInfo:   d.AgencyInfo,
		ProfileImage: d.ProfileImage,
		Location:     d.Location,
		LastLoginAt:  d.LastLoginAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type propertyDocument struct {
	ID                 primitive.ObjectID     `bson:"_id,omitempty"`
	Title              string                 `bson:"title"`
	Description        string                 `bson:"description"`
	Type               types.ListingType      `bson:"type"`
	Category           types.Category         `bson:"category"`
	Price              float64                `bson:"price"`
	Area               float64                `bson:"area"`
	Rooms              int                    `bson:"rooms"`
	Bathrooms          int                    `bson:"bathrooms"`
	Location           types.PropertyLocation `bson:"location"`
	Features           []string               `bson:"features"`
	AdditionalFeatures string                 `bson:"additionalFeatures,omitempty"`
	Images             []types.Media          `bson:"images"`
	Videos             []types.Media          `bson:"videos"`
	Owner              primitive.ObjectID     `bson:"owner"`
	Status             types.PropertyStatus   `bson:"status"`
	IsPublished        bool                   `bson:"isPublished"`
	PublishedAt        *time.Time             `bson:"publishedAt"`
	Featured           bool                   `bson:"featured"`
	Stats              types.PropertyStats    `bson:"stats"`
	DailyRentInfo      *types.DailyRentInfo   `bson:"dailyRentInfo,omitempty"`
	FarmInfo           *types.FarmInfo        `bson:"farmInfo,omitempty"`
	Reviews            []types.Review         `bson:"reviews"`
	AverageRating      float64                `bson:"averageRating"`
	TotalReviews       int                    `bson:"totalReviews"`
	ExpiryDate         *time.Time             `bson:"expiryDate,omitempty"`
	SoldAt             *time.Time             `bson:"soldDate"`
	SoldTo             string                 `bson:"soldTo"`
	Tags               []string               `bson:"tags"`
	CreatedAt          time.Time              `bson:"createdAt"`
	UpdatedAt          time.Time              `bson:"updatedAt"`
}

func toPropertyDocument(p types.Property, owner primitive.ObjectID) propertyDocument {
	return propertyDocument{
		Title:              p.Title,
		Description:        p.Description,
		Type:               p.Type,
		Category:           p.Category,
		Price:              p.Price,
		Area:               p.Area,
		Rooms:              p.Rooms,
		Bathrooms:          p.Bathrooms,
		Location:           p.Location,
		Features:           nonNil(p.Features),
		AdditionalFeatures: p.AdditionalFeatures,
		Images:             nonNilSlice(p.Images),
		Videos:             nonNilSlice(p.Videos),
		Owner:              owner,
		Status:             p.Status,
		IsPublished:        p.IsPublished,
		PublishedAt:        p.PublishedAt,
		Featured:           p.Featured,
		Stats:              p.Stats,
		DailyRentInfo:      p.DailyRentInfo,
		FarmInfo:           p.FarmInfo,
		Reviews:            nonNilSlice(p.Reviews),
		AverageRating:      p.AverageRating,
		TotalReviews:       p.TotalReviews,
		ExpiryDate:         p.ExpiryDate,
		SoldAt:             p.SoldAt,
		SoldTo:             p.SoldTo,
		Tags:               nonNil(p.Tags),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (d propertyDocument) toDomain() types.Property {
	return types.Property{
		ID:                 d.ID.Hex(),
		Title:              d.Title,
		Description:        d.Description,
		Type:               d.Type,
		Category:           d.Category,
		Price:              d.Price,
		Area:               d.Area,
		Rooms:              d.Rooms,
		Bathrooms:          d.Bathrooms,
		Location:           d.Location,
		Features:           nonNil(d.Features),
		AdditionalFeatures: d.AdditionalFeatures,
		Images:             nonNilSlice(d.Images),
		Videos:             nonNilSlice(d.Videos),
		OwnerID:            d.Owner.Hex(),
		Status:             d.Status,
		IsPublished:        d.IsPublished,
		PublishedAt:        d.PublishedAt,
		Featured:           d.Featured,
		Stats:              d.Stats,
		DailyRentInfo:      d.DailyRentInfo,
		FarmInfo:           d.FarmInfo,
		Reviews:            nonNilSlice(d.Reviews),
		AverageRating:      d.AverageRating,
		TotalReviews:       d.TotalReviews,
		ExpiryDate:         d.ExpiryDate,
		SoldAt:             d.SoldAt,
		SoldTo:             d.SoldTo,
		Tags:               nonNil(d.Tags),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilSlice[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
