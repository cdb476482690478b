// Package rekognition implements face detection, comparison and indexing on AWS Rekognition.
package rekognition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/vision"
)

const (
	// maxImageBytes is the largest inline image Rekognition accepts.
	maxImageBytes = 5 << 20
	// shrinkSize is the longest side used when an image has to be shrunk to fit.
	shrinkSize = constants.MaxImageSize
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
	IndexFaces(ctx context.Context, params *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	CreateCollection(ctx context.Context, params *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
}

// Client talks to Rekognition. Reference images for indexing live in Bucket.
type Client struct {
	api    API
	bucket string

	mu      sync.Mutex
	created map[string]bool
}

// New creates a client from a loaded AWS configuration.
func New(cfg aws.Config, bucket string) *Client {
	return NewWithAPI(rekognition.NewFromConfig(cfg), bucket)
}

// NewWithAPI creates a client around an existing API implementation.
func NewWithAPI(api API, bucket string) *Client {
	return &Client{api: api, bucket: bucket, created: make(map[string]bool)}
}

// DetectFaces returns every face Rekognition finds in the image.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]vision.DetectedFace, error) {
	image, err := fit(image)
	if err != nil {
		return nil, err
	}

	out, err := c.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]vision.DetectedFace, 0, len(out.FaceDetails))
	for _, d := range out.FaceDetails {
		faces = append(faces, vision.DetectedFace{
			BoundingBox: convertBox(d.BoundingBox),
			Confidence:  float64(aws.ToFloat32(d.Confidence)),
		})
	}
	return faces, nil
}

// CompareFaces finds faces in target that match the largest face in source.
func (c *Client) CompareFaces(ctx context.Context, source, target []byte, threshold float64) ([]vision.FaceMatch, error) {
	source, err := fit(source)
	if err != nil {
		return nil, fmt.Errorf("source image: %w", err)
	}
	target, err = fit(target)
	if err != nil {
		return nil, fmt.Errorf("target image: %w", err)
	}

	out, err := c.api.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: source},
		TargetImage:         &types.Image{Bytes: target},
		SimilarityThreshold: aws.Float32(float32(threshold)),
	})
	if err != nil {
		return nil, fmt.Errorf("compare faces: %w", err)
	}

	matches := make([]vision.FaceMatch, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		match := vision.FaceMatch{Similarity: float64(aws.ToFloat32(m.Similarity))}
		if m.Face != nil {
			match.BoundingBox = convertBox(m.Face.BoundingBox)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// IndexFace adds the face stored under key to a collection, creating the
// collection the first time it turns out to be missing.
func (c *Client) IndexFace(ctx context.Context, collectionID, key, externalID string) error {
	err := c.indexFace(ctx, collectionID, key, externalID)
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	if err := c.ensureCollection(ctx, collectionID); err != nil {
		return err
	}
	return c.indexFace(ctx, collectionID, key, externalID)
}

func (c *Client) indexFace(ctx context.Context, collectionID, key, externalID string) error {
	_, err := c.api.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:    aws.String(collectionID),
		ExternalImageId: aws.String(externalID),
		Image: &types.Image{
			S3Object: &types.S3Object{Bucket: aws.String(c.bucket), Name: aws.String(key)},
		},
		MaxFaces: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("index face %s: %w", key, err)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, collectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.created[collectionID] {
		return nil
	}

	_, err := c.api.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create collection %s: %w", collectionID, err)
	}
	c.created[collectionID] = true
	return nil
}

func convertBox(b *types.BoundingBox) vision.BoundingBox {
	if b == nil {
		return vision.BoundingBox{}
	}
	return vision.BoundingBox{
		X:      float64(aws.ToFloat32(b.Left)),
		Y:      float64(aws.ToFloat32(b.Top)),
		Width:  float64(aws.ToFloat32(b.Width)),
		Height: float64(aws.ToFloat32(b.Height)),
	}
}

// fit shrinks images that exceed the inline payload limit.
func fit(image []byte) ([]byte, error) {
	if len(image) <= maxImageBytes {
		return image, nil
	}
	return vision.FitImage(image, shrinkSize)
}
