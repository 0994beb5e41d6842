package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samber/lo"
)

type ShippingAddress struct {
	ID           uuid.UUID
	UserID       string
	Name         string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
	IsDefault    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a ShippingAddress) FullAddress() string {
	parts := []string{
		a.Street + ", " + a.Number,
		a.Complement,
		a.Neighborhood,
		a.City + "/" + a.State,
		a.ZipCode,
		a.Country,
	}

	return strings.Join(lo.Filter(parts, func(p string, _ int) bool {
		return p != ""
	}), " - ")
}
