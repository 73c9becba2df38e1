package vendormerge

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRoster(store *memory.Store) {
	seedVendor(store, "v1", "Transportes Peñasco S.A. de C.V.")
	seedVendor(store, "v2", "TRANSPORTES PENASCO")
	seedVendor(store, "v3", "Sol Tours")
	seedVendor(store, "v4", "TEST")
	seedVendor(store, "v5", "Sol Tours Inc.")
	store.Vendors.SeedTransfer("v1")
	store.Vendors.SeedTransfer("v1")
	store.Vendors.SeedTransfer("v5")
}

func TestAnalyze_ClassifierGroupsAreRevalidated(t *testing.T) {
	store := memory.New()
	seedRoster(store)
	classifier := &fakeClassifier{reply: "Here you go:\n```json\n" + `[
		{"groupId": 1, "reason": "accent variant", "vendors": [
			{"id": "v2", "name": "TRANSPORTES PENASCO", "isSuggestedMaster": true},
			{"id": "v1", "name": "Transportes Peñasco", "isSuggestedMaster": true}
		]},
		{"groupId": "g2", "reason": "same company", "vendors": [
			{"id": "v3", "name": "Sol Tours", "isSuggestedMaster": false},
			{"id": "v5", "name": "Sol Tours Inc.", "isSuggestedMaster": false}
		]},
		{"groupId": "g3", "reason": "hallucinated", "vendors": [
			{"id": "v3", "name": "Sol Tours", "isSuggestedMaster": true},
			{"id": "v99", "name": "Ghost", "isSuggestedMaster": false}
		]},
		{"groupId": "g4", "reason": "placeholder", "vendors": [
			{"id": "v4", "name": "TEST", "isSuggestedMaster": false}
		]},
		{"groupId": "g5", "reason": "already grouped", "vendors": [
			{"id": "v1", "name": "x", "isSuggestedMaster": true},
			{"id": "v3", "name": "y", "isSuggestedMaster": false}
		]}
	]` + "\n```"}

	res, err := newTestService(t, store, nil, classifier).Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, 5, res.RosterSize)
	assert.Contains(t, classifier.prompt, "v1 | Transportes Peñasco S.A. de C.V. | - | active | 2 | 0 | 0")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "v99")

	require.Len(t, res.Groups, 3)

	g1 := res.Groups[0]
	assert.Equal(t, "1", g1.GroupID)
	assert.Equal(t, "v1", g1.Master().ID, "two flagged masters fall back to usage")
	assert.Equal(t, 2, g1.Master().Usage.Transfers)

	g2 := res.Groups[1]
	assert.Equal(t, "v5", g2.Master().ID, "no flagged master falls back to usage")
	assert.Equal(t, "Sol Tours Inc.", g2.Members[1].Name)

	g4 := res.Groups[2]
	assert.Equal(t, "g4", g4.GroupID)
	assert.Equal(t, "Invalid record", g4.Reason)
	require.Len(t, g4.Members, 1)
	assert.True(t, g4.Members[0].IsSuggestedMaster)
}

func TestAnalyze_FallsBackToHeuristic(t *testing.T) {
	tests := []struct {
		name       string
		classifier Classifier
		wantErr    string
	}{
		{"no classifier", nil, "not configured"},
		{"collaborator failure", &fakeClassifier{err: domain.CollaboratorError("bedrock.classify", errors.New("throttled"))}, "throttled"},
		{"unparsable reply", &fakeClassifier{reply: "I could not find duplicates."}, "unparsable classifier reply"},
		{"unknown fields", &fakeClassifier{reply: `[{"groupId":"g1","confidence":0.9,"vendors":[]}]`}, "unparsable classifier reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			seedRoster(store)

			res, err := newTestService(t, store, nil, tt.classifier).Analyze(context.Background())
			require.NoError(t, err)
			assert.Equal(t, SourceHeuristic, res.Source)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], tt.wantErr)

			require.Len(t, res.Groups, 3)
			assert.Equal(t, []string{"v1", "v2"}, memberIDs(res.Groups[0]))
			assert.Equal(t, "v1", res.Groups[0].Master().ID)
			assert.Equal(t, []string{"v5", "v3"}, memberIDs(res.Groups[1]))
			assert.Equal(t, invalidRecordReason, res.Groups[2].Reason)
		})
	}
}

func TestAnalyze_RealNamesWithPlaceholderWordsAreGrouped(t *testing.T) {
	store := memory.New()
	seedVendor(store, "n1", "Na Balam Tours")
	seedVendor(store, "n2", "NA BALAM TOURS S.A. de C.V.")
	seedVendor(store, "n3", "Testing Labs Cancun")
	seedVendor(store, "n4", "Delete Pest Control")

	res, err := newTestService(t, store, nil, nil).Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.ElementsMatch(t, []string{"n1", "n2"}, memberIDs(res.Groups[0]))
	assert.NotEqual(t, invalidRecordReason, res.Groups[0].Reason)
}

func TestAnalyze_EmptyRoster(t *testing.T) {
	classifier := &fakeClassifier{}
	res, err := newTestService(t, memory.New(), nil, classifier).Analyze(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Empty(t, classifier.prompt, "classifier not called")
}

func TestAnalyze_MergedVendorsLeaveRoster(t *testing.T) {
	store := memory.New()
	seedRoster(store)
	seedVendor(store, "v6", "Sol Tours [MERGED]")

	res, err := newTestService(t, store, nil, nil).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.RosterSize)
}

func TestParseGroups_TypedError(t *testing.T) {
	_, err := parseGroups("not json at all")
	require.Error(t, err)
	assert.Equal(t, domain.KindCollaborator, domain.KindOf(err))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "no JSON array found", perr.Reason)
	assert.Equal(t, "not json at all", perr.Raw)
}

func TestNameKey(t *testing.T) {
	tests := map[string]string{
		"Transportes Peñasco, S.A. de C.V.": "transportes penasco",
		"TRANSPORTES PENASCO":               "transportes penasco",
		"Sol Tours Inc.":                    "sol tours",
		"Sol-Tours":                         "sol tours",
		"Blue Bay LLC":                      "blue bay",
		"Grupo S. de R.L. de C.V.":          "grupo",
		"S.A.":                              "sa",
	}
	for in, want := range tests {
		assert.Equal(t, want, NameKey(in), in)
	}
}

func TestIsPlaceholderName(t *testing.T) {
	for _, name := range []string{"", "TEST", "n/a", "N.A.", "XXX", "Cancelado", "prueba 2", "Test XX", "--"} {
		assert.True(t, isPlaceholderName(name), name)
	}
	for _, name := range []string{
		"Contest Tours", "Sol Tours", "Xcaret", "X",
		"Na Balam Tours", "Testing Labs Cancun", "Delete Pest Control", "Hotel None Such",
	} {
		assert.False(t, isPlaceholderName(name), name)
	}
}

func memberIDs(g Group) []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
