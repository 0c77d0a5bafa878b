package model

import (
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceResidential ServiceType = "residential"
	ServiceCommercial  ServiceType = "commercial"
	ServiceIndustrial  ServiceType = "industrial"
	ServicePublic      ServiceType = "public"
)

var serviceTypes = map[ServiceType]struct{}{
	ServiceResidential: {},
	ServiceCommercial:  {},
	ServiceIndustrial:  {},
	ServicePublic:      {},
}

// ParseServiceType normalizes a raw category. An empty value yields the
// residential default.
func ParseServiceType(raw string) (ServiceType, bool) {
	cleaned := ServiceType(strings.ToLower(strings.TrimSpace(raw)))
	if cleaned == "" {
		return ServiceResidential, true
	}
	_, ok := serviceTypes[cleaned]
	return cleaned, ok
}

// CaseRecord is the console-facing view of a catalog entry.
type CaseRecord struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	ServiceType ServiceType `json:"service_type"`
	ImageURL    string      `json:"image_url"`
	LocationTag string      `json:"location_tag"`
	Description string      `json:"description"`
}

// Case is the stored row. Position is the display rank, lowest first.
type Case struct {
	ID          string
	Title       string
	ServiceType ServiceType
	ImageKey    string
	LocationTag string
	Description string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c Case) Record() CaseRecord {
	return CaseRecord{
		ID:          c.ID,
		Title:       c.Title,
		ServiceType: c.ServiceType,
		ImageURL:    ImageURL(c.ImageKey),
		LocationTag: c.LocationTag,
		Description: c.Description,
	}
}

const UploadsPrefix = "/uploads/"

func ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return UploadsPrefix + key
}

type CaseInput struct {
	Title       string
	ServiceType string
	LocationTag string
	Description string
}
