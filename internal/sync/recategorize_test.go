package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/types"
)

type fakeRescorer struct {
	rows    []*types.Email
	updated map[string]string
	fail    string
	loadErr error
}

func (f *fakeRescorer) AllEmails(context.Context) ([]*types.Email, error) {
	return f.rows, f.loadErr
}

func (f *fakeRescorer) UpdateDerived(_ context.Context, e *types.Email) error {
	if e.ID == f.fail {
		return errors.New("readonly database")
	}
	f.updated[e.ID] = e.Category
	return nil
}

func TestRecategorizeAll(t *testing.T) {
	store := &fakeRescorer{
		rows: []*types.Email{
			{NormalizedMessage: types.NormalizedMessage{ID: "a", Subject: "Flight booking", IsRead: true}, Category: types.CategoryPersonal},
			{NormalizedMessage: types.NormalizedMessage{ID: "b", Subject: "hello", IsRead: true}, Category: types.CategoryPersonal},
			{NormalizedMessage: types.NormalizedMessage{ID: "c", Subject: "flight", IsRead: true}, Category: types.CategoryPersonal},
		},
		updated: map[string]string{},
		fail:    "c",
	}
	r := &Recategorizer{
		Store:    store,
		Keywords: keywords.New(keywords.Entry{Category: "Travel", Keywords: []string{"flight"}}),
		Log:      zerolog.Nop(),
	}

	res, err := r.RecategorizeAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, map[string]string{"a": "Travel", "b": types.CategoryPersonal}, store.updated)
}

func TestRecategorizeAllLoadError(t *testing.T) {
	r := &Recategorizer{Store: &fakeRescorer{loadErr: errors.New("no such table")}, Log: zerolog.Nop()}
	_, err := r.RecategorizeAll(context.Background())
	assert.Error(t, err)
}
