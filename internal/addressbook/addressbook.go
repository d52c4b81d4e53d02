// Package addressbook exposes the server-held contact list with the
// role filtering the booking screens need. The platform endpoint filters
// by query only; the sender/recipient split happens here, client-side.
package addressbook

import (
	"context"
	"strings"

	"github.com/example/courier-booking/internal/models"
)

// Role selects which side of a booking a contact belongs to.
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// API is the slice of the upstream client the directory needs.
type API interface {
	AddressBook(ctx context.Context, query string) ([]models.AddressBookEntry, error)
}

type Directory struct {
	api API
}

func NewDirectory(api API) *Directory {
	return &Directory{api: api}
}

// Lookup fetches contacts matching query and keeps only those with the
// given role. An empty role returns everything.
func (d *Directory) Lookup(ctx context.Context, query string, role Role) ([]models.AddressBookEntry, error) {
	entries, err := d.api.AddressBook(ctx, query)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return entries, nil
	}
	out := entries[:0:0]
	for _, e := range entries {
		if strings.EqualFold(e.Role, string(role)) {
			out = append(out, e)
		}
	}
	return out, nil
}
