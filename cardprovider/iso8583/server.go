package iso8583

import (
	"context"
	"fmt"
	"time"

	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"golang.org/x/exp/slog"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/internal/cardgen"
)

// Authorizer verifies a card and its PIN.
type Authorizer interface {
	Authorize(ctx context.Context, card atmmodels.Card) (atmmodels.AuthenticationToken, error)
}

// Server answers 0100 authorization requests with 0110 responses.
type Server struct {
	Addr string

	server     *server.Server
	logger     *slog.Logger
	authorizer Authorizer
	timeout    time.Duration
}

func NewServer(logger *slog.Logger, addr string, authorizer Authorizer) *Server {
	return &Server{
		Addr:       addr,
		logger:     logger.With(slog.String("component", "iso8583-server")),
		authorizer: authorizer,
		timeout:    5 * time.Second,
	}
}

func (s *Server) Start() error {
	s.server = server.New(
		spec,
		readMessageLength,
		writeMessageLength,
		connection.InboundMessageHandler(s.handleMessage),
	)

	if err := s.server.Start(s.Addr); err != nil {
		return fmt.Errorf("starting iso8583 server: %w", err)
	}

	s.Addr = s.server.Addr
	s.logger.Info("iso8583 server started", slog.String("addr", s.Addr))

	return nil
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.server.Close()
	s.logger.Info("iso8583 server stopped")

	return nil
}

func (s *Server) handleMessage(c *connection.Connection, message *iso8583.Message) {
	mti, err := message.GetMTI()
	if err != nil {
		s.logger.Error("getting mti", "err", err)
		return
	}

	if mti != mtiAuthorizationRequest {
		s.logger.Error("unexpected message", slog.String("mti", mti))
		return
	}

	stan, err := message.GetString(11)
	if err != nil {
		s.logger.Error("getting stan", "err", err)
		return
	}

	token, authErr := s.authorize(message)
	code := responseCode(authErr)
	if code == CodeSystemError {
		s.logger.Error("authorizing card", "err", authErr)
	}

	response := iso8583.NewMessage(spec)
	response.MTI(mtiAuthorizationResponse)

	fields := map[int]string{
		11: stan,
		39: code,
	}
	if authErr == nil {
		fields[38] = fmt.Sprintf("%06d", token.AuthorizationCode)
		fields[48] = token.UserID
	}

	for id, value := range fields {
		if err := response.Field(id, value); err != nil {
			s.logger.Error("setting response field", slog.Int("field", id), "err", err)
			return
		}
	}

	if err := c.Reply(response); err != nil {
		s.logger.Error("replying", "err", err)
	}
}

func (s *Server) authorize(message *iso8583.Message) (atmmodels.AuthenticationToken, error) {
	pan, err := message.GetString(2)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("getting pan: %w", err)
	}

	if cardgen.ValidatePAN(pan) != nil {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrInvalidCard
	}

	block, err := message.GetBytes(52)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("getting pin block: %w", err)
	}

	pin, err := DecodePINBlock(block, pan)
	if err != nil {
		s.logger.Warn("bad pin block", slog.String("card", cardgen.MaskPAN(pan)), "err", err)
		return atmmodels.AuthenticationToken{}, atmmodels.ErrIncorrectPIN
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.authorizer.Authorize(ctx, atmmodels.Card{Number: pan, PIN: pin})
}
