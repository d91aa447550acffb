package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipRank(t *testing.T) {
	assert.Equal(t, 1, RelationshipRank("Husband"))
	assert.Equal(t, 1, RelationshipRank("suami"))
	assert.Equal(t, 2, RelationshipRank(" Istri "))
	assert.Equal(t, 3, RelationshipRank("ANAK"))
	assert.Equal(t, 4, RelationshipRank("Cucu"))
	assert.Equal(t, 4, RelationshipRank(""))
}

func TestHeadRelationshipForSex(t *testing.T) {
	assert.Equal(t, RelationshipHusband, HeadRelationshipForSex(SexMale))
	assert.Equal(t, RelationshipWife, HeadRelationshipForSex(SexFemale))
	assert.Equal(t, RelationshipHusband, HeadRelationshipForSex(""))
}
