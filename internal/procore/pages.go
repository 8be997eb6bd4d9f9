package procore

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// Paging defaults. Procore collection endpoints accept page/per_page and
// answer with Total/Per-Page headers and an RFC 5988 Link header.
const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// pageFunc decodes one page body and reports how many entries it held.
type pageFunc func(page int, body []byte) (int, error)

// fetchAllPages requests page 1, 2, ... of path until the server signals the
// end, handing each body to decode. A partial page is never treated as the
// complete listing.
func (c *Client) fetchAllPages(
	ctx context.Context,
	path string,
	query url.Values,
	decode pageFunc,
	logAttrs ...slog.Attr,
) error {
	perPage := c.perPage()

	for page := 1; ; page++ {
		q := url.Values{}
		for k, vs := range query {
			q[k] = append([]string(nil), vs...)
		}

		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))

		resp, err := c.Get(ctx, path, q)
		if err != nil {
			return err
		}

		n, err := decode(page, resp.Body)
		if err != nil {
			return err
		}

		args := make([]any, 0, len(logAttrs)+3)
		for _, a := range logAttrs {
			args = append(args, a)
		}

		args = append(args,
			slog.String("path", path),
			slog.Int("page", page),
			slog.Int("entries", n),
		)
		c.logger.Debug("fetched page", args...)

		if n == 0 || !hasNextPage(resp, page, perPage) {
			return nil
		}
	}
}

func (c *Client) perPage() int {
	switch {
	case c.pageSize <= 0:
		return defaultPageSize
	case c.pageSize > maxPageSize:
		return maxPageSize
	default:
		return c.pageSize
	}
}

// hasNextPage reports whether the server indicated more entries beyond page.
// A Link rel="next" wins; otherwise the Total header is compared with what
// has been requested so far. No paging metadata means a single page.
func hasNextPage(resp *Response, page, perPage int) bool {
	for _, link := range resp.Header.Values("Link") {
		if linkHasRel(link, "next") {
			return true
		}
	}

	total, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Total")))
	if err != nil {
		return false
	}

	if pp, ppErr := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Per-Page"))); ppErr == nil && pp > 0 {
		perPage = pp
	}

	return page*perPage < total
}

// linkHasRel scans a Link header value for an entry with the given rel.
func linkHasRel(header, rel string) bool {
	for _, part := range strings.Split(header, ",") {
		for _, param := range strings.Split(part, ";")[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(key, "rel") {
				continue
			}

			for _, r := range strings.Fields(strings.Trim(val, `"`)) {
				if strings.EqualFold(r, rel) {
					return true
				}
			}
		}
	}

	return false
}
