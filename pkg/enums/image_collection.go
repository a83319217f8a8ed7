package enums

import "fmt"

// ImageCollection identifies which legacy image collection a record belongs to.
type ImageCollection string

const (
	ImageCollectionCovers ImageCollection = "covers"
	ImageCollectionPages  ImageCollection = "pages"
)

var validImageCollections = []ImageCollection{
	ImageCollectionCovers,
	ImageCollectionPages,
}

// ImageCollections returns the collections in sweep order.
func ImageCollections() []ImageCollection {
	out := make([]ImageCollection, len(validImageCollections))
	copy(out, validImageCollections)
	return out
}

// String returns the literal string for the collection.
func (c ImageCollection) String() string {
	return string(c)
}

// IsValid reports whether the collection is known.
func (c ImageCollection) IsValid() bool {
	for _, candidate := range validImageCollections {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseImageCollection converts raw input into an ImageCollection.
func ParseImageCollection(value string) (ImageCollection, error) {
	for _, candidate := range validImageCollections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid image collection %q", value)
}
