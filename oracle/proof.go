package oracle

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stablemint/crypto"
)

// SubmissionDomainV1 is the domain separator signed into every price
// submission so signatures cannot be replayed across protocols.
const SubmissionDomainV1 = "STABLEMINT_PRICE_V1"

// Submission is a signed oracle price payload for a single collateral code.
type Submission struct {
	Domain    string
	Code      string
	Price     *big.Int
	Timestamp time.Time
	Signature []byte
}

// NewSubmission constructs an unsigned submission from raw inputs.
func NewSubmission(code string, price *big.Int, ts int64) (*Submission, error) {
	symbol := normalizeSymbol(code)
	if symbol == "" {
		return nil, fmt.Errorf("submission: collateral code required")
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("submission: price must be positive")
	}
	if ts <= 0 {
		return nil, fmt.Errorf("submission: timestamp required")
	}
	return &Submission{
		Domain:    SubmissionDomainV1,
		Code:      symbol,
		Price:     new(big.Int).Set(price),
		Timestamp: time.Unix(ts, 0).UTC(),
	}, nil
}

// CanonicalMessage renders the byte-exact message that is signed and
// verified.
func (s *Submission) CanonicalMessage() (string, error) {
	if s == nil {
		return "", fmt.Errorf("submission not initialised")
	}
	domain := strings.ToUpper(strings.TrimSpace(s.Domain))
	if domain == "" {
		return "", fmt.Errorf("submission: domain required")
	}
	code := normalizeSymbol(s.Code)
	if code == "" {
		return "", fmt.Errorf("submission: collateral code required")
	}
	if s.Price == nil || s.Price.Sign() <= 0 {
		return "", fmt.Errorf("submission: price required")
	}
	if s.Timestamp.IsZero() {
		return "", fmt.Errorf("submission: timestamp required")
	}
	builder := strings.Builder{}
	builder.WriteString(domain)
	builder.WriteString("|code=")
	builder.WriteString(code)
	builder.WriteString("|price=")
	builder.WriteString(s.Price.String())
	builder.WriteString("|ts=")
	builder.WriteString(fmt.Sprintf("%d", s.Timestamp.UTC().Unix()))
	return builder.String(), nil
}

// ID returns the hexadecimal keccak digest of the canonical message. Used
// as the journal key for accepted submissions.
func (s *Submission) ID() (string, error) {
	message, err := s.CanonicalMessage()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ethcrypto.Keccak256([]byte(message))), nil
}

// Sign attaches a recoverable signature over the canonical message.
func (s *Submission) Sign(key *crypto.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("submission: signing key required")
	}
	message, err := s.CanonicalMessage()
	if err != nil {
		return err
	}
	sig, err := key.Sign([]byte(message))
	if err != nil {
		return fmt.Errorf("submission: sign: %w", err)
	}
	s.Signature = sig
	return nil
}

// Signer recovers the address that produced the attached signature.
func (s *Submission) Signer() (crypto.Address, error) {
	if s == nil {
		return crypto.Address{}, fmt.Errorf("submission not initialised")
	}
	if len(s.Signature) == 0 {
		return crypto.Address{}, fmt.Errorf("submission: signature required")
	}
	message, err := s.CanonicalMessage()
	if err != nil {
		return crypto.Address{}, err
	}
	signer, err := crypto.RecoverAddress([]byte(message), s.Signature)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("submission: %w", err)
	}
	return signer, nil
}

// Verify recovers the signer and checks membership in the authorized set.
// It returns the recovered reporter address on success.
func (s *Submission) Verify(authorized []crypto.Address) (crypto.Address, error) {
	signer, err := s.Signer()
	if err != nil {
		return crypto.Address{}, err
	}
	for _, addr := range authorized {
		if addr.Equal(signer) {
			return signer, nil
		}
	}
	return crypto.Address{}, fmt.Errorf("submission: signer %s not authorized", signer)
}
