package cardprovider

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/cardprovider/models"
	"github.com/alovak/atm-playground/internal/cardgen"
	"github.com/alovak/atm-playground/internal/expiry"
	"github.com/alovak/atm-playground/internal/security"
)

const (
	DefaultBIN            = "421234"
	DefaultMaxPINAttempts = 3
	panLength             = 16
	maxCodeAttempts       = 20
)

type Config struct {
	BINPrefix      string
	CardProduct    string
	MaxPINAttempts int
	PANHashKey     []byte
	Expiry         expiry.Policy
}

type Service struct {
	repo   *Repository
	pvv    security.PVVProvider
	cfg    Config
	logger *slog.Logger
	nowFn  func() time.Time
	codeFn func() (int, error)
}

func NewService(logger *slog.Logger, repo *Repository, pvv security.PVVProvider, cfg Config) *Service {
	if cfg.BINPrefix == "" || cardgen.ValidateBIN(cfg.BINPrefix) != nil {
		cfg.BINPrefix = DefaultBIN
	}
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = DefaultMaxPINAttempts
	}
	if cfg.Expiry.Location == nil && cfg.Expiry.ProductYears == nil {
		cfg.Expiry = expiry.DefaultPolicy()
	}

	return &Service{
		repo:   repo,
		pvv:    pvv,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "cardprovider")),
		nowFn:  time.Now,
		codeFn: authorizationCode,
	}
}

// IssueCard creates a card with a fresh PAN for the account. The PAN is
// returned only here.
func (s *Service) IssueCard(ctx context.Context, accountID string, pin int) (*models.IssuedCard, error) {
	exists := func(pan string) (bool, error) {
		return s.repo.ExistsPANHash(ctx, cardgen.HashPAN(pan, s.cfg.PANHashKey))
	}

	for attempt := 0; attempt < 5; attempt++ {
		pan, err := cardgen.GenerateUniquePAN(s.cfg.BINPrefix, panLength, 10, exists)
		if err != nil {
			return nil, fmt.Errorf("generating pan: %w", err)
		}

		yymm := s.cfg.Expiry.IssueYYMM(s.nowFn(), s.cfg.CardProduct)
		card, err := s.newCard(pan, pin, accountID, yymm)
		if err != nil {
			return nil, err
		}

		err = s.repo.CreateCard(ctx, card)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating card: %w", err)
		}

		s.logger.Info("card issued", slog.String("card", cardgen.MaskPAN(pan)), slog.String("account_id", accountID))

		return &models.IssuedCard{
			ID:         card.ID,
			AccountID:  accountID,
			Number:     pan,
			ExpiryYYMM: yymm,
		}, nil
	}

	return nil, fmt.Errorf("could not create unique card after retries")
}

// RegisterCard stores a card whose PAN was issued elsewhere.
func (s *Service) RegisterCard(ctx context.Context, req models.RegisterCard) (*models.Card, error) {
	pan := cardgen.NormalizePAN(req.Number)
	if err := cardgen.ValidatePAN(pan); err != nil {
		return nil, fmt.Errorf("registering card: %w", err)
	}
	if err := expiry.ValidateYYMM(req.ExpiryYYMM); err != nil {
		return nil, fmt.Errorf("registering card: %w", err)
	}

	card, err := s.newCard(pan, req.PIN, req.AccountID, req.ExpiryYYMM)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}

	return card, nil
}

func (s *Service) newCard(pan string, pin int, accountID, yymm string) (*models.Card, error) {
	pvv, err := s.pvv.ComputePVV(cardgen.StripCheckDigit(pan), pin)
	if err != nil {
		return nil, fmt.Errorf("computing pvv: %w", err)
	}

	return &models.Card{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		PANHash:    cardgen.HashPAN(pan, s.cfg.PANHashKey),
		Last4:      pan[len(pan)-4:],
		ExpiryYYMM: yymm,
		PVV:        pvv,
	}, nil
}

// Authorize verifies the card and its PIN and issues a token scoped to the
// owning account.
func (s *Service) Authorize(ctx context.Context, c atmmodels.Card) (atmmodels.AuthenticationToken, error) {
	pan := cardgen.NormalizePAN(c.Number)
	if cardgen.ValidatePAN(pan) != nil {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrInvalidCard
	}

	hash := cardgen.HashPAN(pan, s.cfg.PANHashKey)
	card, err := s.repo.FindByPANHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrInvalidCard
	}
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("finding card: %w", err)
	}

	if card.Blocked {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrCardBlocked
	}

	expired, err := s.cfg.Expiry.IsExpired(card.ExpiryYYMM, s.nowFn())
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("checking expiry: %w", err)
	}
	if expired {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrCardExpired
	}

	pvv, err := s.pvv.ComputePVV(cardgen.StripCheckDigit(pan), c.PIN)
	if err != nil {
		// a PIN outside 0..999999 can never match
		pvv = ""
	}
	if subtle.ConstantTimeCompare([]byte(pvv), []byte(card.PVV)) != 1 {
		blocked, err := s.repo.RecordFailedAttempt(ctx, hash, s.cfg.MaxPINAttempts)
		if err != nil {
			return atmmodels.AuthenticationToken{}, fmt.Errorf("recording pin attempt: %w", err)
		}
		if blocked {
			s.logger.Warn("card blocked", slog.String("card", cardgen.MaskPAN(pan)))
		}
		return atmmodels.AuthenticationToken{}, atmmodels.ErrIncorrectPIN
	}

	if card.FailedAttempts > 0 {
		if err := s.repo.ResetAttempts(ctx, hash); err != nil {
			return atmmodels.AuthenticationToken{}, fmt.Errorf("resetting pin attempts: %w", err)
		}
	}

	code, err := s.uniqueCode(ctx, card.AccountID)
	if err != nil {
		return atmmodels.AuthenticationToken{}, err
	}

	return atmmodels.AuthenticationToken{
		AuthorizationCode: code,
		UserID:            card.AccountID,
	}, nil
}

// uniqueCode draws codes until one was never issued to the account, so the
// ledger key userID/code names exactly one transaction.
func (s *Service) uniqueCode(ctx context.Context, accountID string) (int, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codeFn()
		if err != nil {
			return 0, fmt.Errorf("generating authorization code: %w", err)
		}

		ok, err := s.repo.ReserveCode(ctx, accountID, code)
		if err != nil {
			return 0, fmt.Errorf("reserving authorization code: %w", err)
		}
		if ok {
			return code, nil
		}
	}

	return 0, fmt.Errorf("no unused authorization code after %d attempts", maxCodeAttempts)
}

func authorizationCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
