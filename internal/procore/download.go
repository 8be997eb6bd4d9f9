package procore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrNoDownloadURL is returned when asked to download an empty URL.
var ErrNoDownloadURL = errors.New("procore: file version has no download URL")

// Download streams the bytes behind a file version's download URL into w and
// returns the number of bytes written. The request goes through the same
// retry policy as API calls. Only the request/response cycle is retried;
// a failure while streaming the body is returned to the caller.
// The URL itself is never logged because it is usually pre-signed.
func (c *Client) Download(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	if downloadURL == "" {
		return 0, ErrNoDownloadURL
	}

	target, err := c.resolve(downloadURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, "download", func() (*http.Request, error) {
		return c.newRequest(ctx, target)
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		c.logger.Error("streaming download content failed",
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("procore: streaming download content: %w", copyErr)
	}

	c.logger.Debug("download complete", slog.Int64("bytes_written", n))

	return n, nil
}
