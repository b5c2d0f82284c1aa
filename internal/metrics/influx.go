package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/homly/storefront/internal/logging"
)

// StartInfluxPusher pushes the counter snapshot to InfluxDB every interval
// until ctx is cancelled.
func StartInfluxPusher(ctx context.Context, baseURL, token, org, bucket string, interval time.Duration) {
	if baseURL == "" || bucket == "" {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	logging.Get().Info().Str("url", baseURL).Dur("interval", interval).Msg("starting influxdb pusher")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	writeURL := influxWriteURL(baseURL, org, bucket)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = pushToInflux(ctx, client, writeURL, token, time.Now())
		}
	}
}

func influxWriteURL(baseURL, org, bucket string) string {
	q := url.Values{}
	q.Set("org", org)
	q.Set("bucket", bucket)
	q.Set("precision", "s")
	return fmt.Sprintf("%s/api/v2/write?%s", strings.TrimRight(baseURL, "/"), q.Encode())
}

// influxLine renders the snapshot in line protocol, e.g.
// storefront orders=10i,notifications_sent=25i,... 1678888888
func influxLine(s StatsSnapshot, now time.Time) string {
	return fmt.Sprintf(
		"storefront orders=%di,notifications_sent=%di,notifications_failed=%di,notifications_disabled=%di,last_dispatch=%di %d",
		s.OrdersCreated, s.NotificationsSent, s.NotificationsFailed, s.NotificationsDisabled, s.LastDispatch, now.Unix(),
	)
}

func pushToInflux(ctx context.Context, client *http.Client, writeURL, token string, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, strings.NewReader(influxLine(GetSnapshot(), now)))
	if err != nil {
		logging.Get().Error().Err(err).Msg("influxdb request creation failed")
		return err
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		logging.Get().Error().Err(err).Msg("influxdb push failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logging.Get().Warn().Int("status", resp.StatusCode).Msg("influxdb rejected metrics")
		return fmt.Errorf("influxdb returned status %d", resp.StatusCode)
	}
	return nil
}
