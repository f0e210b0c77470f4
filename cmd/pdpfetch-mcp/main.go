package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// fetchResponse mirrors the pdpfetch API response model.
type fetchResponse struct {
	Success  bool   `json:"success"`
	PageType string `json:"page_type"`
	FinalURL string `json:"final_url"`
	Result   *struct {
		Title            string   `json:"title"`
		Brand            string   `json:"brand"`
		ItemForm         string   `json:"item_form"`
		Price            string   `json:"price"`
		VisionPrice      string   `json:"vision_price"`
		VisionBrand      string   `json:"vision_brand"`
		Bullets          []string `json:"bullets"`
		Description      string   `json:"description"`
		MainImage        string   `json:"main_image"`
		OtherImages      []string `json:"other_images"`
		Rating           string   `json:"rating"`
		ReviewCount      string   `json:"review_count"`
		AvailabilityDate string   `json:"availability_date"`
	} `json:"result"`
	PageExcerpt string `json:"page_excerpt"`
	Diagnostics struct {
		FinalState string `json:"final_state"`
	} `json:"diagnostics"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("PDPFETCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PDPFETCH_API_KEY")

	s := server.NewMCPServer(
		"pdpfetch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	fetchProductTool := mcp.NewTool("fetch_product",
		mcp.WithDescription("Fetch a retail product page in an isolated headless browser and return the normalized product record: title, brand, price, images, bullets, rating, and availability. Handles bot challenges and overlay interstitials automatically."),
		mcp.WithString("locator",
			mcp.Required(),
			mcp.Description("Product page URL or bare 10-character item identifier"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Navigation timeout in seconds (default: 60, max: 120)"),
		),
	)

	s.AddTool(fetchProductTool, handleFetchProduct(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleFetchProduct(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		locator, err := request.RequireString("locator")
		if err != nil {
			return mcp.NewToolResultError("locator is required"), nil
		}

		query := url.Values{}
		query.Set("locator", locator)
		if raw, ok := request.GetArguments()["timeout"]; ok {
			if timeout, isNum := raw.(float64); isNum && timeout > 0 {
				query.Set("timeout", strconv.Itoa(int(timeout)))
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
			apiURL+"/api/v1/product?"+query.Encode(), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var fetchResp fetchResponse
		if err := json.Unmarshal(respBody, &fetchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !fetchResp.Success {
			errMsg := "fetch failed"
			if fetchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", fetchResp.Error.Code, fetchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatFetch(&fetchResp)), nil
	}
}

// formatFetch renders the record as readable text for the tool result.
func formatFetch(r *fetchResponse) string {
	var sb strings.Builder

	if r.PageType != "product" || r.Result == nil {
		sb.WriteString(fmt.Sprintf("Non-product page (%s): %s\n", r.Diagnostics.FinalState, r.FinalURL))
		if r.PageExcerpt != "" {
			sb.WriteString("\nPage excerpt:\n" + r.PageExcerpt + "\n")
		}
		return sb.String()
	}

	p := r.Result
	sb.WriteString(fmt.Sprintf("Title: %s\n", p.Title))
	sb.WriteString(fmt.Sprintf("Brand: %s (vision: %s)\n", p.Brand, p.VisionBrand))
	sb.WriteString(fmt.Sprintf("Price: %s (vision: %s)\n", p.Price, p.VisionPrice))
	sb.WriteString(fmt.Sprintf("Item form: %s\n", p.ItemForm))
	sb.WriteString(fmt.Sprintf("Rating: %s (%s reviews)\n", p.Rating, p.ReviewCount))
	sb.WriteString(fmt.Sprintf("First available: %s\n", p.AvailabilityDate))
	sb.WriteString(fmt.Sprintf("Source: %s\n", r.FinalURL))

	if len(p.Bullets) > 0 {
		sb.WriteString("\nHighlights:\n")
		for _, b := range p.Bullets {
			sb.WriteString("- " + b + "\n")
		}
	}

	if p.MainImage != "" && p.MainImage != "unspecified" {
		sb.WriteString(fmt.Sprintf("\nMain image: %s\n", p.MainImage))
		if len(p.OtherImages) > 0 {
			sb.WriteString(fmt.Sprintf("Additional images: %d\n", len(p.OtherImages)))
		}
	}

	if p.Description != "" && p.Description != "unspecified" {
		sb.WriteString("\nDescription:\n" + p.Description + "\n")
	}

	return sb.String()
}
