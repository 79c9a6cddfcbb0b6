package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProofStorage persists payment proof images and hands out short-lived view
// links for verification.
type ProofStorage interface {
	Store(ctx context.Context, key string, body io.Reader, contentType string) error
	PresignView(ctx context.Context, key string) (string, error)
}

type s3ProofStorage struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
}

// NewProofStorage creates an S3-backed ProofStorage.
func NewProofStorage(s3Client *s3.Client, bucketName string) ProofStorage {
	return &s3ProofStorage{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    bucketName,
	}
}

func (s *s3ProofStorage) Store(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store proof %s: %w", key, err)
	}
	return nil
}

func (s *s3ProofStorage) PresignView(ctx context.Context, key string) (string, error) {
	resp, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign proof %s: %w", key, err)
	}
	return resp.URL, nil
}
