package research

import (
	"context"
	"errors"
	"testing"

	"github.com/convictionhq/conviction/internal/llm"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestQueryVariantsPreferModel(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateQueriesResponse = []string{"a", "b", "c"}

	got := queryVariants(context.Background(), mock, zap.NewNop(), "Northstar", "Robotics", "inspection growth", 2)
	assert.Equal(t, []string{"a", "b"}, got, "capped at the requested count")
}

func TestQueryVariantsFallBackWhenModelFails(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateQueriesError = errors.New("model unavailable")

	got := queryVariants(context.Background(), mock, zap.NewNop(), "Northstar", "Robotics", "inspection growth", 5)
	assert.Len(t, got, 5)
	assert.Equal(t, "Northstar inspection growth", got[0])
	assert.Contains(t, got, "Northstar inspection growth risks")
}

func TestAdversarialQueryBreadth(t *testing.T) {
	got := adversarialQueryVariants("Northstar", "revenue keeps compounding", 0)
	assert.Len(t, got, 1, "breadth floors at one")
	assert.Equal(t, "Northstar revenue keeps compounding problems", got[0])

	got = adversarialQueryVariants("Northstar", "revenue keeps compounding", 10)
	assert.Len(t, got, 4, "breadth caps at the template set")

	assert.Empty(t, adversarialQueryVariants("", "", 2))
}
