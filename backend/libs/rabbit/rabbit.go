package rabbit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

// Client holds an AMQP connection and the channel publishers use.
type Client struct {
	Conn    *amqp091.Connection
	Channel *amqp091.Channel
}

// NewClient dials url, opens a channel and declares a durable topic exchange.
func NewClient(url, exchange string) (*Client, error) {
	url = strings.TrimSpace(url)
	if err := validate(url, exchange); err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbit: open channel: %w", err)
	}

	if exchange != "" {
		if err := ch.ExchangeDeclare(
			exchange,
			"topic",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rabbit: declare exchange %s: %w", exchange, err)
		}
	}

	return &Client{Conn: conn, Channel: ch}, nil
}

func validate(url, exchange string) error {
	if url == "" {
		return errors.New("rabbit: url is empty")
	}
	if _, err := amqp091.ParseURI(url); err != nil {
		return fmt.Errorf("rabbit: invalid url: %w", err)
	}
	if strings.ContainsAny(exchange, " \t\r\n") {
		return fmt.Errorf("rabbit: invalid exchange name %q", exchange)
	}
	// amq.* names are reserved by the broker.
	if strings.HasPrefix(exchange, "amq.") {
		return fmt.Errorf("rabbit: exchange %q uses the reserved amq. prefix", exchange)
	}
	return nil
}

// Close releases the channel and connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Channel != nil {
		errs = append(errs, c.Channel.Close())
	}
	if c.Conn != nil {
		errs = append(errs, c.Conn.Close())
	}
	return errors.Join(errs...)
}
