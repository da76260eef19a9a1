package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// RatingRequest is the body of a rating submission.
type RatingRequest struct {
	BookingID   int64  `json:"booking_id"`
	RatingType  string `json:"rating_type"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// CanRate reports which rating types the caller may still submit for a booking.
func (c *Client) CanRate(ctx context.Context, bookingID int64) (*CanRate, error) {
	var res CanRate
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/ratings/can-rate/%d", bookingID), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Rate submits feedback for a completed booking.
func (c *Client) Rate(ctx context.Context, req RatingRequest) (*Rating, error) {
	var r Rating
	if err := c.do(ctx, http.MethodPost, "/ratings", nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UserRatings lists ratings a user received, or the non-anonymous ratings
// they gave when given is set.
func (c *Client) UserRatings(ctx context.Context, userID int64, given bool) ([]Rating, error) {
	var query url.Values
	if given {
		query = url.Values{"type": {"given"}}
	}
	var ratings []Rating
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/ratings/user/%d", userID), query, nil, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}

// ItemRatings lists the ratings of an item.
func (c *Client) ItemRatings(ctx context.Context, itemID int64) ([]Rating, error) {
	var ratings []Rating
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/ratings/item/%d", itemID), nil, nil, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}
