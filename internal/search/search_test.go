package search

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmlx/metabase-mcp/internal/metabase"
)

type mockGateway struct {
	collections    *metabase.CollectionList
	collectionsErr error

	cards          *metabase.CardList
	cardsErr       error
	cardsErrOnCall map[int]error
	cardsCalls     int
}

func (m *mockGateway) ListCollections(ctx context.Context) (*metabase.CollectionList, error) {
	if m.collectionsErr != nil {
		return nil, m.collectionsErr
	}
	return m.collections, nil
}

func (m *mockGateway) ListCards(ctx context.Context) (*metabase.CardList, error) {
	m.cardsCalls++
	if err, ok := m.cardsErrOnCall[m.cardsCalls]; ok {
		return nil, err
	}
	if m.cardsErr != nil {
		return nil, m.cardsErr
	}
	return m.cards, nil
}

func newService(gateway *mockGateway) *Service {
	return New(gateway, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intPtr(v int64) *int64 {
	return &v
}

func collectionFixture() *metabase.CollectionList {
	return &metabase.CollectionList{
		Searched: 3,
		Collections: []metabase.Collection{
			{ID: 1, Name: "Team Ops", Description: "operational dashboards"},
			{ID: 2, Name: "Sales Reports", Description: "quarterly numbers"},
			{ID: 3, Name: "Archive", Description: ""},
		},
	}
}

func TestFindCandidateCollections(t *testing.T) {
	t.Run("matches name substring", func(t *testing.T) {
		svc := newService(&mockGateway{collections: collectionFixture()})

		result, err := svc.FindCandidateCollections(context.Background(), "team", 5)
		require.NoError(t, err)

		require.Len(t, result.Collections, 1)
		assert.Equal(t, "Team Ops", result.Collections[0].CollectionName)
		assert.Equal(t, int64(1), result.Collections[0].CollectionID)
		assert.Equal(t, 3, result.Counts.TotalCollectionsSearched)
		assert.Equal(t, 1, result.Counts.MatchedCollections)
		assert.Equal(t, 1, result.Counts.ReturnedCollections)
	})

	t.Run("matches description substring", func(t *testing.T) {
		svc := newService(&mockGateway{collections: collectionFixture()})

		result, err := svc.FindCandidateCollections(context.Background(), "quarterly", 10)
		require.NoError(t, err)

		require.Len(t, result.Collections, 1)
		assert.Equal(t, "Sales Reports", result.Collections[0].CollectionName)
	})

	t.Run("query is trimmed and case-insensitive", func(t *testing.T) {
		svc := newService(&mockGateway{collections: collectionFixture()})

		result, err := svc.FindCandidateCollections(context.Background(), "  TEAM  ", 10)
		require.NoError(t, err)

		require.Len(t, result.Collections, 1)
		assert.Equal(t, "Team Ops", result.Collections[0].CollectionName)
	})

	t.Run("no match", func(t *testing.T) {
		svc := newService(&mockGateway{collections: collectionFixture()})

		result, err := svc.FindCandidateCollections(context.Background(), "marketing", 10)
		require.NoError(t, err)

		assert.Empty(t, result.Collections)
		assert.Equal(t, 3, result.Counts.TotalCollectionsSearched)
		assert.Equal(t, 0, result.Counts.MatchedCollections)
	})

	t.Run("sorted ascending by name case-insensitive", func(t *testing.T) {
		svc := newService(&mockGateway{collections: &metabase.CollectionList{
			Searched: 4,
			Collections: []metabase.Collection{
				{ID: 1, Name: "beta reports"},
				{ID: 2, Name: "Alpha reports"},
				{ID: 3, Name: "gamma reports"},
				{ID: 4, Name: "", Description: "reports with a nameless home"},
			},
		}})

		result, err := svc.FindCandidateCollections(context.Background(), "reports", 10)
		require.NoError(t, err)

		require.Len(t, result.Collections, 4)
		assert.Equal(t, "", result.Collections[0].CollectionName)
		assert.Equal(t, "Alpha reports", result.Collections[1].CollectionName)
		assert.Equal(t, "beta reports", result.Collections[2].CollectionName)
		assert.Equal(t, "gamma reports", result.Collections[3].CollectionName)
	})

	t.Run("truncates to limit as a prefix of the sorted order", func(t *testing.T) {
		svc := newService(&mockGateway{collections: &metabase.CollectionList{
			Searched: 3,
			Collections: []metabase.Collection{
				{ID: 1, Name: "C metrics"},
				{ID: 2, Name: "A metrics"},
				{ID: 3, Name: "B metrics"},
			},
		}})

		result, err := svc.FindCandidateCollections(context.Background(), "metrics", 2)
		require.NoError(t, err)

		require.Len(t, result.Collections, 2)
		assert.Equal(t, "A metrics", result.Collections[0].CollectionName)
		assert.Equal(t, "B metrics", result.Collections[1].CollectionName)
		assert.Equal(t, 3, result.Counts.MatchedCollections)
		assert.Equal(t, 2, result.Counts.ReturnedCollections)
	})

	t.Run("zero limit returns counts only", func(t *testing.T) {
		svc := newService(&mockGateway{collections: collectionFixture()})

		result, err := svc.FindCandidateCollections(context.Background(), "a", 0)
		require.NoError(t, err)

		assert.Empty(t, result.Collections)
		assert.NotZero(t, result.Counts.MatchedCollections)
		assert.Equal(t, 0, result.Counts.ReturnedCollections)
	})

	t.Run("malformed upstream shape degrades to empty result", func(t *testing.T) {
		svc := newService(&mockGateway{collectionsErr: &metabase.Error{
			Kind:    metabase.ErrKindMalformedShape,
			Message: "expected a JSON array from /collection",
		}})

		result, err := svc.FindCandidateCollections(context.Background(), "team", 10)
		require.NoError(t, err)

		assert.Empty(t, result.Collections)
		assert.Equal(t, 0, result.Counts.TotalCollectionsSearched)
		assert.Equal(t, 0, result.Counts.MatchedCollections)
		assert.Equal(t, 0, result.Counts.ReturnedCollections)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		svc := newService(&mockGateway{collectionsErr: &metabase.Error{
			Kind:    metabase.ErrKindConnectError,
			Message: "connection error when connecting to http://bi.example.com/api/collection",
		}})

		_, err := svc.FindCandidateCollections(context.Background(), "team", 10)
		require.Error(t, err)
		assert.True(t, metabase.IsKind(err, metabase.ErrKindConnectError))
	})
}

func cardFixture() *metabase.CardList {
	return &metabase.CardList{
		Total: 2,
		Cards: []metabase.Card{
			{ID: 1, Name: "Revenue YTD", CollectionID: intPtr(10), UpdatedAt: "2024-01-01"},
			{ID: 2, Name: "User Growth", CollectionID: intPtr(10), UpdatedAt: "2024-06-01"},
		},
	}
}

func TestSearchCardsInCollections(t *testing.T) {
	t.Run("scoped match across two collections", func(t *testing.T) {
		gateway := &mockGateway{cards: cardFixture()}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "revenue", []int64{10, 11}, 10, 0)
		require.NoError(t, err)

		require.Len(t, result.Cards, 1)
		assert.Equal(t, int64(1), result.Cards[0].ID)
		assert.Equal(t, 1, result.Page.TotalFound)
		assert.False(t, result.Page.HasMore)
		assert.Equal(t, []int64{10, 11}, result.CollectionsSearched)

		// One full fetch per requested collection id.
		assert.Equal(t, 2, gateway.cardsCalls)
	})

	t.Run("filters by collection id", func(t *testing.T) {
		gateway := &mockGateway{cards: &metabase.CardList{
			Total: 3,
			Cards: []metabase.Card{
				{ID: 1, Name: "orders report", CollectionID: intPtr(10)},
				{ID: 2, Name: "orders report copy", CollectionID: intPtr(20)},
				{ID: 3, Name: "orders rollup", CollectionID: nil},
			},
		}}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "orders", []int64{10}, 25, 0)
		require.NoError(t, err)

		require.Len(t, result.Cards, 1)
		assert.Equal(t, int64(1), result.Cards[0].ID)
	})

	t.Run("matches description", func(t *testing.T) {
		gateway := &mockGateway{cards: &metabase.CardList{
			Total: 1,
			Cards: []metabase.Card{
				{ID: 5, Name: "Q3", Description: "churn breakdown by region", CollectionID: intPtr(7)},
			},
		}}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "churn", []int64{7}, 25, 0)
		require.NoError(t, err)
		assert.Len(t, result.Cards, 1)
	})

	t.Run("sorted descending by updated_at with missing last", func(t *testing.T) {
		gateway := &mockGateway{cards: &metabase.CardList{
			Total: 3,
			Cards: []metabase.Card{
				{ID: 1, Name: "growth old", CollectionID: intPtr(10), UpdatedAt: "2024-01-01"},
				{ID: 2, Name: "growth dateless", CollectionID: intPtr(10), UpdatedAt: ""},
				{ID: 3, Name: "growth new", CollectionID: intPtr(10), UpdatedAt: "2024-06-01"},
			},
		}}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "growth", []int64{10}, 25, 0)
		require.NoError(t, err)

		require.Len(t, result.Cards, 3)
		assert.Equal(t, int64(3), result.Cards[0].ID)
		assert.Equal(t, int64(1), result.Cards[1].ID)
		assert.Equal(t, int64(2), result.Cards[2].ID)
	})

	t.Run("failed fetch downgrades to zero matches for that id", func(t *testing.T) {
		connErr := &metabase.Error{
			Kind:    metabase.ErrKindConnectError,
			Message: "connection error when connecting to http://bi.example.com/api/card",
		}
		gateway := &mockGateway{
			cards:          cardFixture(),
			cardsErrOnCall: map[int]error{1: connErr},
		}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "revenue", []int64{11, 10}, 10, 0)
		require.NoError(t, err)

		// Collection 11's fetch failed; collection 10 still produced its match.
		require.Len(t, result.Cards, 1)
		assert.Equal(t, int64(1), result.Cards[0].ID)

		require.Len(t, result.Skipped, 1)
		assert.Equal(t, int64(11), result.Skipped[0].CollectionID)
		assert.True(t, metabase.IsKind(result.Skipped[0].Reason, metabase.ErrKindConnectError))
	})

	t.Run("malformed card listing counts as zero matches", func(t *testing.T) {
		gateway := &mockGateway{cardsErr: &metabase.Error{
			Kind:    metabase.ErrKindMalformedShape,
			Message: "expected a JSON array from /card",
		}}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "revenue", []int64{10}, 10, 0)
		require.NoError(t, err)

		assert.Empty(t, result.Cards)
		assert.Equal(t, 0, result.Page.TotalFound)
		assert.Len(t, result.Skipped, 1)
	})

	t.Run("pagination window", func(t *testing.T) {
		cards := make([]metabase.Card, 0, 5)
		dates := []string{"2024-05-01", "2024-04-01", "2024-03-01", "2024-02-01", "2024-01-01"}
		for i, date := range dates {
			cards = append(cards, metabase.Card{
				ID:           int64(i + 1),
				Name:         "usage report",
				CollectionID: intPtr(10),
				UpdatedAt:    date,
			})
		}
		gateway := &mockGateway{cards: &metabase.CardList{Total: 5, Cards: cards}}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "usage", []int64{10}, 2, 2)
		require.NoError(t, err)

		require.Len(t, result.Cards, 2)
		assert.Equal(t, int64(3), result.Cards[0].ID)
		assert.Equal(t, int64(4), result.Cards[1].ID)
		assert.Equal(t, 5, result.Page.TotalFound)
		assert.Equal(t, 2, result.Page.Returned)
		assert.True(t, result.Page.HasMore)
	})

	t.Run("duplicate collection ids duplicate matches", func(t *testing.T) {
		gateway := &mockGateway{cards: cardFixture()}
		svc := newService(gateway)

		result, err := svc.SearchCardsInCollections(context.Background(), "revenue", []int64{10, 10}, 25, 0)
		require.NoError(t, err)

		assert.Len(t, result.Cards, 2)
		assert.Equal(t, 2, result.Page.TotalFound)
	})

	t.Run("identical inputs produce identical results", func(t *testing.T) {
		first, err := newService(&mockGateway{cards: cardFixture()}).
			SearchCardsInCollections(context.Background(), "e", []int64{10}, 25, 0)
		require.NoError(t, err)

		second, err := newService(&mockGateway{cards: cardFixture()}).
			SearchCardsInCollections(context.Background(), "e", []int64{10}, 25, 0)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}
