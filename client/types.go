package client

import "github.com/erazemk/locallend/internal/model"

// Wire types shared with the server.
type (
	User          = model.User
	PublicUser    = model.PublicUser
	Category      = model.Category
	Item          = model.Item
	ItemPage      = model.Page[model.Item]
	DateRange     = model.DateRange
	Booking       = model.Booking
	BookingStatus = model.BookingStatus
	Rating        = model.Rating
	CanRate       = model.CanRate
	Date          = model.Date
)
