package influx

import (
	"encoding/json"
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

// Sample is one decoded position row.
type Sample struct {
	Time time.Time
	AGL  int
	Alt  int
	GS   float64
	Lat  float64
	Lon  float64
}

// Client answers the range queries the background jobs run against the
// position series.
type Client struct {
	conn     client.Client
	database string
}

// NewClient connects a query client to the InfluxDB endpoint.
func NewClient(url, database string) (*Client, error) {
	conn, err := client.NewHTTPClient(client.HTTPConfig{Addr: url})
	if err != nil {
		return nil, fmt.Errorf("failed to create influx client: %w", err)
	}
	return &Client{conn: conn, database: database}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// LastPosition returns the most recent position stored for an aircraft, or
// nil when the series holds none.
func (c *Client) LastPosition(addr string) (*Sample, error) {
	q := fmt.Sprintf(
		"SELECT agl, alt, gs, lat, lon FROM %s WHERE addr='%s' ORDER BY time DESC LIMIT 1",
		Measurement, addr)
	samples, err := c.query(q)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return &samples[0], nil
}

// Window returns the positions recorded for an aircraft between start and
// end (inclusive, seconds UTC), newest first.
func (c *Client) Window(addr string, start, end int64) ([]Sample, error) {
	q := fmt.Sprintf(
		"SELECT agl, alt, gs, lat, lon FROM %s WHERE addr='%s' AND time >= %ds AND time <= %ds ORDER BY time DESC",
		Measurement, addr, start, end)
	return c.query(q)
}

// Track returns the positions recorded for an aircraft between start and
// end (inclusive, seconds UTC), in flight order.
func (c *Client) Track(addr string, start, end int64) ([]Sample, error) {
	q := fmt.Sprintf(
		"SELECT lat, lon FROM %s WHERE addr='%s' AND time >= %ds AND time <= %ds ORDER BY time ASC",
		Measurement, addr, start, end)
	return c.query(q)
}

func (c *Client) query(q string) ([]Sample, error) {
	resp, err := c.conn.Query(client.NewQuery(q, c.database, "s"))
	if err != nil {
		return nil, fmt.Errorf("influx query failed: %w", err)
	}
	if resp.Error() != nil {
		return nil, fmt.Errorf("influx query failed: %w", resp.Error())
	}

	var samples []Sample
	for _, result := range resp.Results {
		for _, series := range result.Series {
			cols := make(map[string]int, len(series.Columns))
			for i, name := range series.Columns {
				cols[name] = i
			}
			for _, row := range series.Values {
				var s Sample
				if ts, ok := number(row, cols, "time"); ok {
					s.Time = time.Unix(int64(ts), 0).UTC()
				}
				if v, ok := number(row, cols, "agl"); ok {
					s.AGL = int(v)
				}
				if v, ok := number(row, cols, "alt"); ok {
					s.Alt = int(v)
				}
				if v, ok := number(row, cols, "gs"); ok {
					s.GS = v
				}
				if v, ok := number(row, cols, "lat"); ok {
					s.Lat = v
				}
				if v, ok := number(row, cols, "lon"); ok {
					s.Lon = v
				}
				samples = append(samples, s)
			}
		}
	}
	return samples, nil
}

func number(row []interface{}, cols map[string]int, name string) (float64, bool) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return 0, false
	}
	n, ok := row[i].(json.Number)
	if !ok {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}
