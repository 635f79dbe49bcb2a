package iso8583

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"golang.org/x/exp/slog"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/internal/cardgen"
)

// Client sends authorization requests to a card provider over ISO 8583.
type Client struct {
	addr   string
	logger *slog.Logger
	conn   *connection.Connection

	mu   sync.Mutex
	stan int
}

func NewClient(logger *slog.Logger, addr string) *Client {
	return &Client{
		addr:   addr,
		logger: logger.With(slog.String("component", "iso8583-client")),
	}
}

func (c *Client) Connect() error {
	conn, err := connection.New(
		c.addr,
		spec,
		readMessageLength,
		writeMessageLength,
		connection.SendTimeout(5*time.Second),
		connection.ErrorHandler(func(err error) {
			c.logger.Error("iso8583 connection", "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("creating iso8583 connection: %w", err)
	}

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("connecting to iso8583 server: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// nextSTAN cycles through 000001..999999.
func (c *Client) nextSTAN() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stan = c.stan%999999 + 1

	return fmt.Sprintf("%06d", c.stan)
}

func (c *Client) Authorize(ctx context.Context, card atmmodels.Card) (atmmodels.AuthenticationToken, error) {
	if err := ctx.Err(); err != nil {
		return atmmodels.AuthenticationToken{}, err
	}

	pan := cardgen.NormalizePAN(card.Number)
	if cardgen.ValidatePAN(pan) != nil {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrInvalidCard
	}

	block, err := EncodePINBlock(card.PIN, pan)
	if err != nil {
		return atmmodels.AuthenticationToken{}, atmmodels.ErrIncorrectPIN
	}

	request := iso8583.NewMessage(spec)
	request.MTI(mtiAuthorizationRequest)

	fields := map[int]string{
		2:  pan,
		3:  processingCashWithdrawal,
		7:  time.Now().UTC().Format("0102150405"),
		11: c.nextSTAN(),
	}
	for id, value := range fields {
		if err := request.Field(id, value); err != nil {
			return atmmodels.AuthenticationToken{}, fmt.Errorf("setting field %d: %w", id, err)
		}
	}

	if err := request.BinaryField(52, block); err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("setting pin block: %w", err)
	}

	response, err := c.conn.Send(request)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("sending authorization request: %w", err)
	}

	code, err := response.GetString(39)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("getting response code: %w", err)
	}

	if err := codeError(code); err != nil {
		c.logger.Info("authorization declined", slog.String("card", cardgen.MaskPAN(pan)), slog.String("code", code))
		return atmmodels.AuthenticationToken{}, err
	}

	authCode, err := response.GetString(38)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("getting authorization code: %w", err)
	}

	codeValue, err := strconv.Atoi(authCode)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("parsing authorization code %q: %w", authCode, err)
	}

	userID, err := response.GetString(48)
	if err != nil {
		return atmmodels.AuthenticationToken{}, fmt.Errorf("getting user id: %w", err)
	}

	return atmmodels.AuthenticationToken{
		AuthorizationCode: codeValue,
		UserID:            userID,
	}, nil
}
