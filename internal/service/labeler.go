package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rekognitiontypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// Labeler returns the detected label names for an image in object storage.
type Labeler interface {
	DetectLabels(ctx context.Context, bucket, key string) ([]string, error)
}

// RekognitionAPI is the subset of the Rekognition client the labeler calls.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

type rekognitionLabeler struct {
	client        RekognitionAPI
	maxLabels     int32
	minConfidence float32
}

// NewRekognitionLabeler labels S3 objects with Amazon Rekognition.
func NewRekognitionLabeler(client RekognitionAPI, maxLabels int32, minConfidence float32) Labeler {
	return &rekognitionLabeler{client: client, maxLabels: maxLabels, minConfidence: minConfidence}
}

func (l *rekognitionLabeler) DetectLabels(ctx context.Context, bucket, key string) ([]string, error) {
	out, err := l.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: &rekognitiontypes.Image{
			S3Object: &rekognitiontypes.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		MaxLabels:     aws.Int32(l.maxLabels),
		MinConfidence: aws.Float32(l.minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("detect labels for %s: %w", key, err)
	}
	labels := make([]string, 0, len(out.Labels))
	for _, lb := range out.Labels {
		labels = append(labels, aws.ToString(lb.Name))
	}
	return labels, nil
}

// Keyword tables are ordered; the first match wins.
var categoryKeywords = []struct{ keyword, category string }{
	{"shirt", "Top"},
	{"t-shirt", "Top"},
	{"top", "Top"},
	{"blouse", "Top"},
	{"sweater", "Top"},
	{"hoodie", "Top"},
	{"jacket", "Top"},
	{"coat", "Top"},
	{"pants", "Bottom"},
	{"jeans", "Bottom"},
	{"trousers", "Bottom"},
	{"shorts", "Bottom"},
	{"skirt", "Bottom"},
	{"shoes", "Shoes"},
	{"footwear", "Shoes"},
	{"sneakers", "Shoes"},
	{"boots", "Shoes"},
	{"dress", "Dress"},
	{"suit", "Top"},
}

var colorNames = []string{
	"red", "blue", "green", "yellow", "black",
	"white", "purple", "orange", "pink", "brown",
	"gray", "grey", "beige", "navy", "teal",
	"maroon", "olive", "gold", "silver", "tan",
}

var seasonKeywords = []struct {
	season   string
	keywords []string
}{
	{"Winter", []string{"winter", "coat", "warm", "sweater", "wool"}},
	{"Summer", []string{"summer", "light", "thin", "shorts", "beach"}},
	{"Spring", []string{"spring", "light jacket", "rain", "windbreaker"}},
	{"Fall", []string{"fall", "autumn", "jacket", "light coat"}},
}

const unknownLabel = "Unknown"

func lowerSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = true
	}
	return set
}

func clothingCategory(labels []string) string {
	set := lowerSet(labels)
	for _, kc := range categoryKeywords {
		if set[kc.keyword] {
			return kc.category
		}
	}
	return unknownLabel
}

func occasion(labels []string) string {
	set := lowerSet(labels)
	switch {
	case set["formal"] || set["suit"] || set["dress"]:
		return "Formal"
	case set["sports"] || set["athletic"] || set["gym"]:
		return "Sports"
	case set["casual"]:
		return "Casual"
	}
	return unknownLabel
}

func dominantColor(labels []string) string {
	for _, l := range labels {
		lower := strings.ToLower(l)
		for _, c := range colorNames {
			if strings.Contains(lower, c) {
				return strings.ToUpper(c[:1]) + c[1:]
			}
		}
	}
	return unknownLabel
}

func season(labels []string) string {
	for _, sk := range seasonKeywords {
		for _, kw := range sk.keywords {
			for _, l := range labels {
				if strings.Contains(strings.ToLower(l), kw) {
					return sk.season
				}
			}
		}
	}
	return "Seasonless"
}

func subCategory(labels []string) *string {
	for _, l := range labels {
		lower := strings.ToLower(l)
		if strings.Contains(lower, "shirt") || strings.Contains(lower, "pants") || strings.Contains(lower, "shoes") {
			v := l
			return &v
		}
	}
	return nil
}

// AnalyzeLabels classifies a clothing photo from its detected labels.
func AnalyzeLabels(labels []string) *model.ImageAnalysis {
	all := labels
	if all == nil {
		all = []string{}
	}
	return &model.ImageAnalysis{
		Category:    clothingCategory(labels),
		SubCategory: subCategory(labels),
		Vibe:        occasion(labels),
		Season:      season(labels),
		Color:       dominantColor(labels),
		AllLabels:   all,
	}
}
