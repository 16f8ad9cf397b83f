package token

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Identity tokens are opaque random strings bound to exactly one student
// at a time; the unique index on the stored value is the final arbiter.
// A student's QR badge carries the current token value.

const (
	// 20 random bytes = 160 bits of entropy; collisions are practically
	// impossible, the retry loop below is a safety net.
	tokenBytes       = 20
	maxIssueAttempts = 5
)

var (
	b32      = base32.StdEncoding.WithPadding(base32.NoPadding)
	tokenLen = b32.EncodedLen(tokenBytes)

	randRead = rand.Read // mockable

	// errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExists  = errors.New("token already in use")
	ErrExhausted    = errors.New("token issuance retry budget exhausted")
)

type (
	Repository interface {
		// StudentIDByToken resolves a token value to the student holding it;
		// returns ErrInvalidToken when no student does.
		StudentIDByToken(ctx context.Context, tok string) (string, error)
		// SetStudentToken atomically replaces the student's current token
		// with tok; returns ErrTokenExists if another student holds tok.
		SetStudentToken(ctx context.Context, studentID, tok string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Issue binds a freshly generated token to the student, invalidating any
// previous one in the same store write. Retries on the (rare) collision;
// an exhausted retry budget is a capacity-level failure and is reported
// loudly rather than returning a colliding token.
func (svc *Service) Issue(ctx context.Context, studentID string) (string, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		tok, err := generate()
		if err != nil {
			return "", errors.Wrap(err, "generating token")
		}
		err = svc.repo.SetStudentToken(ctx, studentID, tok)
		if errors.Cause(err) == ErrTokenExists {
			continue
		}
		if err != nil {
			return "", err
		}
		return tok, nil
	}
	svc.logger.Error(
		fmt.Sprintf("token issuance for student %s exhausted %d attempts; token space saturated", studentID, maxIssueAttempts),
		ErrExhausted,
	)
	return "", ErrExhausted
}

// Rotate invalidates the student's previous token and issues a new one as
// one atomic update; there is no window where both or neither are valid.
func (svc *Service) Rotate(ctx context.Context, studentID string) (string, error) {
	return svc.Issue(ctx, studentID)
}

// Verify resolves a token to exactly one student. Malformed input, an
// unknown token and a rotated-away token are indistinguishable to the
// caller: all return ErrInvalidToken.
func (svc *Service) Verify(ctx context.Context, tok string) (string, error) {
	tok = core.CleanString(tok)
	if len(tok) != tokenLen {
		return "", ErrInvalidToken
	}
	if _, err := b32.DecodeString(tok); err != nil {
		return "", ErrInvalidToken
	}
	return svc.repo.StudentIDByToken(ctx, tok)
}

func generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := randRead(buf); err != nil {
		return "", err
	}
	return b32.EncodeToString(buf), nil
}
