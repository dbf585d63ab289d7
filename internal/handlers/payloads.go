package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/types"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// phoneRegion is the default region for numbers without a country code.
const phoneRegion = "IQ"

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// sanitize trims s and strips HTML tags.
func sanitize(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitize(*s)
	return &clean
}

// normalizePhone parses raw as an Iraqi number and returns it in E.164.
func normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.ReplaceAll(raw, " ", ""), phoneRegion)
	if err != nil || !phonenumbers.IsValidNumberForRegion(num, phoneRegion) {
		return "", errors.New("must be a valid Iraqi phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

var iraqiPhone = validation.By(func(value interface{}) error {
	value, isNil := validation.Indirect(value)
	s, _ := value.(string)
	if isNil || s == "" {
		return nil
	}
	_, err := normalizePhone(s)
	return err
})

// runeLength counts characters rather than bytes; names are often Arabic.
func runeLength(min, max int) validation.Rule {
	return validation.By(func(value interface{}) error {
		value, isNil := validation.Indirect(value)
		s, _ := value.(string)
		if isNil || s == "" {
			return nil
		}
		if n := utf8.RuneCountInString(s); n < min || n > max {
			return fmt.Errorf("the length must be between %d and %d", min, max)
		}
		return nil
	})
}

func equalTo(other, message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		value, _ = validation.Indirect(value)
		if s, _ := value.(string); s != other {
			return errors.New(message)
		}
		return nil
	})
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Phone           string              `json:"phone"`
	Password        string              `json:"password"`
	ConfirmPassword string              `json:"confirmPassword"`
	UserType        types.Role          `json:"userType"`
	AgencyName      string              `json:"agencyName"`
	LicenseNumber   string              `json:"licenseNumber"`
	Location        *types.UserLocation `json:"location,omitempty"`
}

func (r *RegisterRequest) normalize() {
	r.Name = sanitize(r.Name)
	r.Email = types.NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.AgencyName = sanitize(r.AgencyName)
	r.LicenseNumber = sanitize(r.LicenseNumber)
	if r.UserType == "" {
		r.UserType = types.RoleIndividual
	}
}

func (r RegisterRequest) Validate() error {
	agencyRules := func(min, max int) []validation.Rule {
		if r.UserType != types.RoleAgency {
			return nil
		}
		return []validation.Rule{validation.Required, runeLength(min, max)}
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, runeLength(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Phone, validation.Required, iraqiPhone),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.ConfirmPassword, validation.Required, equalTo(r.Password, "passwords do not match")),
		validation.Field(&r.UserType, validation.In(types.RoleIndividual, types.RoleAgency)),
		validation.Field(&r.AgencyName, agencyRules(3, 200)...),
		validation.Field(&r.LicenseNumber, agencyRules(5, 50)...),
	)
}

// Registration converts a validated request.
func (r RegisterRequest) Registration() (services.Registration, error) {
	phone, err := normalizePhone(r.Phone)
	if err != nil {
		return services.Registration{}, err
	}
	reg := services.Registration{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    phone,
		Password: r.Password,
		Role:     r.UserType,
		Location: r.Location,
	}
	if r.UserType == types.RoleAgency {
		reg.AgencyInfo = &types.AgencyInfo{
			AgencyName:    r.AgencyName,
			LicenseNumber: r.LicenseNumber,
		}
	}
	return reg, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// ProfileRequest is a self-service profile edit. Role, email and
// activation cannot be expressed.
type ProfileRequest struct {
	Name       *string             `json:"name"`
	Phone      *string             `json:"phone"`
	Location   *types.UserLocation `json:"location"`
	AgencyInfo *types.AgencyInfo   `json:"agencyInfo"`
	Password   *string             `json:"password"`
}

func (r *ProfileRequest) normalize() {
	r.Name = sanitizePtr(r.Name)
	if r.AgencyInfo != nil {
		r.AgencyInfo.AgencyName = sanitize(r.AgencyInfo.AgencyName)
		r.AgencyInfo.LicenseNumber = sanitize(r.AgencyInfo.LicenseNumber)
		r.AgencyInfo.Description = sanitize(r.AgencyInfo.Description)
	}
}

func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, runeLength(2, 100)),
		validation.Field(&r.Phone, validation.NilOrNotEmpty, iraqiPhone),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(8, 128)),
		validation.Field(&r.AgencyInfo, validation.By(func(value interface{}) error {
			info, _ := value.(*types.AgencyInfo)
			if info == nil {
				return nil
			}
			return validation.ValidateStruct(info,
				validation.Field(&info.AgencyName, validation.Required, runeLength(3, 200)),
				validation.Field(&info.LicenseNumber, validation.Required, runeLength(5, 50)),
				validation.Field(&info.Description, runeLength(0, 1000)),
			)
		})),
	)
}

// Changes converts a validated request.
func (r ProfileRequest) Changes() (services.ProfileChanges, error) {
	changes := services.ProfileChanges{
		Name:       r.Name,
		Location:   r.Location,
		AgencyInfo: r.AgencyInfo,
		Password:   r.Password,
	}
	if r.Phone != nil {
		phone, err := normalizePhone(*r.Phone)
		if err != nil {
			return services.ProfileChanges{}, err
		}
		changes.Phone = &phone
	}
	return changes, nil
}

// PropertyRequest is the create and update payload of a listing. Status,
// publish flag and owner are not part of it, so clients cannot set them.
type PropertyRequest struct {
	Title              *string                 `json:"title"`
	Description        *string                 `json:"description"`
	Type               *types.ListingType      `json:"type"`
	Category           *types.Category         `json:"category"`
	Price              *float64                `json:"price"`
	Area               *float64                `json:"area"`
	Rooms              *int                    `json:"rooms"`
	Bathrooms          *int                    `json:"bathrooms"`
	Location           *types.PropertyLocation `json:"location"`
	Features           *[]string               `json:"features"`
	AdditionalFeatures *string                 `json:"additionalFeatures"`
	Images             []types.Media           `json:"images"`
	Videos             []types.Media           `json:"videos"`
	DailyRentInfo      *types.DailyRentInfo    `json:"dailyRentInfo"`
	FarmInfo           *types.FarmInfo         `json:"farmInfo"`
	ExpiryDate         *time.Time              `json:"expiryDate"`
	Tags               *[]string               `json:"tags"`
}

func (r *PropertyRequest) normalize() {
	r.Title = sanitizePtr(r.Title)
	r.Description = sanitizePtr(r.Description)
	r.AdditionalFeatures = sanitizePtr(r.AdditionalFeatures)
	if r.Location != nil {
		r.Location.City = sanitize(r.Location.City)
		r.Location.District = sanitize(r.Location.District)
		r.Location.Neighborhood = sanitize(r.Location.Neighborhood)
		r.Location.Address = sanitize(r.Location.Address)
	}
}

var validListingType = validation.By(func(value interface{}) error {
	value, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	if t, _ := value.(types.ListingType); !t.Valid() {
		return errors.New("must be one of sale, rent, dailyRent")
	}
	return nil
})

var validCategory = validation.By(func(value interface{}) error {
	value, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	if c, _ := value.(types.Category); !c.Valid() {
		return errors.New("must be one of house, apartment, villa, land, farm")
	}
	return nil
})

var locationRule = validation.By(func(value interface{}) error {
	loc, _ := value.(*types.PropertyLocation)
	if loc == nil {
		return nil
	}
	if loc.City == "" && loc.District == "" && loc.Address == "" {
		return errors.New("city, district or address is required")
	}
	return nil
})

// Validate checks the payload; creating requires title, type, category
// and price.
func (r PropertyRequest) Validate(create bool) error {
	required := func(rules ...validation.Rule) []validation.Rule {
		if create {
			return append([]validation.Rule{validation.NotNil}, rules...)
		}
		return rules
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, required(validation.NilOrNotEmpty, runeLength(3, 200))...),
		validation.Field(&r.Description, runeLength(0, 5000)),
		validation.Field(&r.Type, required(validListingType)...),
		validation.Field(&r.Category, required(validCategory)...),
		validation.Field(&r.Price, required(validation.Min(0.0))...),
		validation.Field(&r.Area, validation.Min(0.0)),
		validation.Field(&r.Rooms, validation.Min(0)),
		validation.Field(&r.Bathrooms, validation.Min(0)),
		validation.Field(&r.Location, locationRule),
	)
}

func (r PropertyRequest) Draft() types.PropertyDraft {
	draft := types.PropertyDraft{
		Images:        r.Images,
		Videos:        r.Videos,
		DailyRentInfo: r.DailyRentInfo,
		FarmInfo:      r.FarmInfo,
		ExpiryDate:    r.ExpiryDate,
	}
	if r.Title != nil {
		draft.Title = *r.Title
	}
	if r.Description != nil {
		draft.Description = *r.Description
	}
	if r.Type != nil {
		draft.Type = *r.Type
	}
	if r.Category != nil {
		draft.Category = *r.Category
	}
	if r.Price != nil {
		draft.Price = *r.Price
	}
	if r.Area != nil {
		draft.Area = *r.Area
	}
	if r.Rooms != nil {
		draft.Rooms = *r.Rooms
	}
	if r.Bathrooms != nil {
		draft.Bathrooms = *r.Bathrooms
	}
	if r.Location != nil {
		draft.Location = *r.Location
	}
	if r.Features != nil {
		draft.Features = *r.Features
	}
	if r.AdditionalFeatures != nil {
		draft.AdditionalFeatures = *r.AdditionalFeatures
	}
	if r.Tags != nil {
		draft.Tags = *r.Tags
	}
	return draft
}

// Patch converts an update. Media lists are managed by the upload route.
func (r PropertyRequest) Patch() types.PropertyPatch {
	return types.PropertyPatch{
		Title:              r.Title,
		Description:        r.Description,
		Type:               r.Type,
		Category:           r.Category,
		Price:              r.Price,
		Area:               r.Area,
		Rooms:              r.Rooms,
		Bathrooms:          r.Bathrooms,
		Location:           r.Location,
		Features:           r.Features,
		AdditionalFeatures: r.AdditionalFeatures,
		DailyRentInfo:      r.DailyRentInfo,
		FarmInfo:           r.FarmInfo,
		ExpiryDate:         r.ExpiryDate,
		Tags:               r.Tags,
	}
}

type StatusRequest struct {
	Status types.PropertyStatus `json:"status"`
}

func (r StatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required),
	)
}

type CloseRequest struct {
	Status types.PropertyStatus `json:"status"`
	SoldTo string               `json:"soldTo"`
}

func (r CloseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(types.StatusSold, types.StatusRented, types.StatusInactive)),
		validation.Field(&r.SoldTo, validation.Length(0, 100)),
	)
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (r ReviewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Comment, runeLength(0, 500)),
	)
}
