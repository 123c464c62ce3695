package ogn

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// APRSConfig configures the APRS-IS connection.
type APRSConfig struct {
	Server   string // host:port
	Callsign string
	Filter   string // APRS-IS server-side filter, empty for the full feed
}

// APRSClient maintains a connection to an APRS-IS server and delivers every
// parsed position beacon to a push callback. Reconnects with backoff for as
// long as it is running.
type APRSClient struct {
	cfg     APRSConfig
	handler func(*Beacon)
	running atomic.Bool
	done    chan struct{}
	once    sync.Once
	logger  *logger.Logger
}

const (
	aprsDialTimeout      = 10 * time.Second
	aprsReadTimeout      = 2 * time.Minute
	aprsReconnectBackoff = 5 * time.Second
)

// NewAPRSClient creates a client delivering beacons to handler.
func NewAPRSClient(cfg APRSConfig, handler func(*Beacon), log *logger.Logger) *APRSClient {
	return &APRSClient{
		cfg:     cfg,
		handler: handler,
		done:    make(chan struct{}),
		logger:  log.Named("aprs"),
	}
}

// Start launches the connection loop.
func (c *APRSClient) Start() {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("Refused to start APRS client: already running")
		return
	}
	go c.run()
}

// Stop terminates the connection loop and waits for it to exit.
func (c *APRSClient) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.once.Do(func() { <-c.done })
}

func (c *APRSClient) run() {
	defer close(c.done)

	for c.running.Load() {
		if err := c.session(); err != nil && c.running.Load() {
			c.logger.Warn("APRS connection lost, reconnecting",
				logger.String("server", c.cfg.Server),
				logger.Error(err))
			time.Sleep(aprsReconnectBackoff)
		}
	}
}

// session runs one connection from dial to failure.
func (c *APRSClient) session() error {
	conn, err := net.DialTimeout("tcp", c.cfg.Server, aprsDialTimeout)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	login := fmt.Sprintf("user %s pass -1 vers ogn-logbook 1.0", c.cfg.Callsign)
	if c.cfg.Filter != "" {
		login += " filter " + c.cfg.Filter
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", login); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	c.logger.Info("Connected to APRS-IS", logger.String("server", c.cfg.Server))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for c.running.Load() {
		conn.SetReadDeadline(time.Now().Add(aprsReadTimeout))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("server closed connection")
		}

		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			// Server comment doubles as a keepalive prompt.
			if _, err := fmt.Fprint(conn, "#keepalive\r\n"); err != nil {
				return fmt.Errorf("keepalive failed: %w", err)
			}
			continue
		}

		beacon, err := ParseBeacon(line, time.Now().UTC())
		if err != nil {
			continue
		}
		c.handler(beacon)
	}
	return nil
}
