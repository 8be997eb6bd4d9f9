package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

type companyResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

type projectResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Active      *bool  `json:"active"`
	Company     *struct {
		ID int64 `json:"id"`
	} `json:"company"`
}

func (r *companyResponse) toCompany() Company {
	return Company{
		ID:     r.ID,
		Name:   r.Name,
		Active: r.IsActive == nil || *r.IsActive,
	}
}

func (r *projectResponse) toProject(companyID int64) Project {
	p := Project{
		ID:        r.ID,
		Name:      r.Name,
		CompanyID: companyID,
		Active:    r.Active == nil || *r.Active,
	}

	if p.Name == "" {
		p.Name = r.DisplayName
	}

	if r.Company != nil && r.Company.ID != 0 {
		p.CompanyID = r.Company.ID
	}

	return p
}

// Companies lists every company visible to the credential, across all pages.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	c.logger.Info("listing companies")

	var companies []Company

	err := c.fetchAllPages(ctx, "/companies", nil, func(_ int, body []byte) (int, error) {
		var page []companyResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("procore: decoding companies response: %w", err)
		}

		for i := range page {
			companies = append(companies, page[i].toCompany())
		}

		return len(page), nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed companies", slog.Int("count", len(companies)))

	return companies, nil
}

// Projects lists the projects of one company, across all pages.
func (c *Client) Projects(ctx context.Context, companyID int64) ([]Project, error) {
	c.logger.Info("listing projects", slog.Int64("company_id", companyID))

	query := url.Values{"company_id": {strconv.FormatInt(companyID, 10)}}

	var projects []Project

	err := c.fetchAllPages(ctx, "/projects", query, func(_ int, body []byte) (int, error) {
		var page []projectResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("procore: decoding projects response: %w", err)
		}

		for i := range page {
			projects = append(projects, page[i].toProject(companyID))
		}

		return len(page), nil
	}, slog.Int64("company_id", companyID))
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed projects",
		slog.Int64("company_id", companyID),
		slog.Int("count", len(projects)),
	)

	return projects, nil
}
