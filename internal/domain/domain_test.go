package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyPatch_OnlyNonEmptyFieldsOverwrite(t *testing.T) {
	g := &GuestIdentity{
		LegacyID: "C-100",
		Email:    "jane@example.com",
		FullName: "Jane Doe",
		Phone:    "5551234",
		Stats:    map[string]string{"stays": "3", "nights": "9"},
	}

	g.ApplyPatch(&GuestIdentity{
		LegacyID: "C-999",
		Email:    "",
		Phone:    "+525550000",
		Notes:    "prefers high floor",
		Stats:    map[string]string{"stays": "4", "revenue": "", "last_stay": "2024-01-02"},
	})

	assert.Equal(t, "C-100", g.LegacyID, "legacy id is write-once")
	assert.Equal(t, "jane@example.com", g.Email)
	assert.Equal(t, "Jane Doe", g.FullName)
	assert.Equal(t, "+525550000", g.Phone)
	assert.Equal(t, "prefers high floor", g.Notes)
	assert.Equal(t, map[string]string{"stays": "4", "nights": "9", "last_stay": "2024-01-02"}, g.Stats)
}

func TestMergedName(t *testing.T) {
	assert.Equal(t, "Acme Transfers [MERGED]", MergedName("Acme Transfers"))
	assert.Equal(t, "Acme Transfers [MERGED]", MergedName("Acme Transfers [MERGED]"))
	assert.True(t, IsMergedName("Acme [MERGED]"))
	assert.False(t, IsMergedName("Acme"))
	assert.True(t, IsMergedName("Acme [MERGED] "))
	assert.Equal(t, "Acme [MERGED] ", MergedName("Acme [MERGED] "))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", ValidationError("op", "bad %s", "row"), KindValidation},
		{"wrapped conflict", fmt.Errorf("outer: %w", ConflictError("op", "dup")), KindConflict},
		{"fatal", FatalError("op", errors.New("conn reset")), KindFatal},
		{"sentinel", fmt.Errorf("get: %w", ErrNotFound), KindNotFound},
		{"plain", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFoundError("vendors.get", "vendor %s", "v1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "vendors.get: vendor v1", err.Error())
}

func TestUsageTotal(t *testing.T) {
	u := VendorUsage{Transfers: 3, Products: 2, Users: 1}
	assert.Equal(t, 6, u.Total())
}
