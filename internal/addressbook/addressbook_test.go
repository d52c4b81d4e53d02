package addressbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courier-booking/internal/models"
)

type fakeAPI struct {
	entries   []models.AddressBookEntry
	err       error
	lastQuery string
}

func (f *fakeAPI) AddressBook(_ context.Context, query string) ([]models.AddressBookEntry, error) {
	f.lastQuery = query
	return f.entries, f.err
}

func TestLookupFiltersByRole(t *testing.T) {
	api := &fakeAPI{entries: []models.AddressBookEntry{
		{ID: "1", Role: "sender", Name: "Ada"},
		{ID: "2", Role: "recipient", Name: "Bayo"},
		{ID: "3", Role: "Sender", Name: "Chioma"}, // role casing varies upstream
	}}
	d := NewDirectory(api)
	ctx := context.Background()

	senders, err := d.Lookup(ctx, "a", RoleSender)
	require.NoError(t, err)
	require.Len(t, senders, 2)
	assert.Equal(t, "Ada", senders[0].Name)
	assert.Equal(t, "Chioma", senders[1].Name)
	assert.Equal(t, "a", api.lastQuery)

	recipients, err := d.Lookup(ctx, "a", RoleRecipient)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "Bayo", recipients[0].Name)

	all, err := d.Lookup(ctx, "a", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLookupPropagatesErrors(t *testing.T) {
	wantErr := errors.New("upstream down")
	d := NewDirectory(&fakeAPI{err: wantErr})

	_, err := d.Lookup(context.Background(), "a", RoleSender)
	assert.ErrorIs(t, err, wantErr)
}

func TestLookupNoMatches(t *testing.T) {
	d := NewDirectory(&fakeAPI{entries: []models.AddressBookEntry{{ID: "1", Role: "sender"}}})
	got, err := d.Lookup(context.Background(), "x", RoleRecipient)
	require.NoError(t, err)
	assert.Empty(t, got)
}
