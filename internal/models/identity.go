package models

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrIdentityMismatch   = errors.New("embedding identity mismatch")
	ErrCollectionNotFound = errors.New("collection not found")
)

const (
	metaProvider  = "embedding_provider"
	metaModel     = "embedding_model"
	metaDimension = "embedding_dimension"
)

// Identity names the embedding backend whose vectors live in a collection.
// Vectors from different identities are not comparable.
type Identity struct {
	Provider  string
	Model     string
	Dimension int
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%s (dim %d)", i.Provider, i.Model, i.Dimension)
}

// Check returns ErrIdentityMismatch when got cannot be used against a
// collection recorded with i. A zero dimension on either side is not compared.
func (i Identity) Check(got Identity) error {
	if i.Provider != got.Provider || i.Model != got.Model {
		return fmt.Errorf("%w: collection uses %s, active embedder is %s", ErrIdentityMismatch, i, got)
	}
	if i.Dimension != 0 && got.Dimension != 0 && i.Dimension != got.Dimension {
		return fmt.Errorf("%w: collection dimension %d, vector dimension %d", ErrIdentityMismatch, i.Dimension, got.Dimension)
	}
	return nil
}

func (i Identity) Metadata() map[string]string {
	return map[string]string{
		metaProvider:  i.Provider,
		metaModel:     i.Model,
		metaDimension: strconv.Itoa(i.Dimension),
	}
}

// IdentityFromMetadata is the inverse of Metadata. ok is false when the
// metadata carries no identity, e.g. a collection written by another tool.
func IdentityFromMetadata(m map[string]string) (id Identity, ok bool) {
	id.Provider, ok = m[metaProvider]
	if !ok {
		return Identity{}, false
	}
	id.Model = m[metaModel]
	id.Dimension, _ = strconv.Atoi(m[metaDimension])
	return id, true
}
