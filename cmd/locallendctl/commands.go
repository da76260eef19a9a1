package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/locallend/client"
	"github.com/erazemk/locallend/internal/model"
)

type app struct {
	client *client.Client
	in     io.Reader
	out    io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

// usageError makes run print the command's usage line.
type usageError struct{ msg string }

func (e usageError) Error() string { return "usage: " + e.msg }

var commands = map[string]command{
	"register":     {"-u <username> -n <name> -e <email> [-phone <number>] [-p <password>]", cmdRegister},
	"login":        {"[-p <password>] <username-or-email>", cmdLogin},
	"logout":       {"", cmdLogout},
	"me":           {"", cmdMe},
	"passwd":       {"-old <password> -new <password>", cmdPasswd},
	"profile":      {"<user-id>", cmdProfile},
	"categories":   {"[-sort name|name_desc|created|popular] [-root] [-search <term>] [-parent <id>]", cmdCategories},
	"items":        {"[-q <text>] [-category <id>] [-condition <c>] [-status <s>] [-owner <id>] [-sort <key>] [-page <n>] [-size <n>]", cmdItems},
	"item":         {"<item-id>", cmdItem},
	"item-add":     {"-name <name> -category <id> [-desc <text>] [-condition <c>] [-deposit <amount>]", cmdItemAdd},
	"item-edit":    {"-name <name> -category <id> [-desc <text>] [-condition <c>] [-deposit <amount>] <item-id>", cmdItemEdit},
	"item-status":  {"<item-id> AVAILABLE|UNAVAILABLE", cmdItemStatus},
	"item-delete":  {"<item-id>", cmdItemDelete},
	"availability": {"<item-id>", cmdAvailability},
	"image-add":    {"<item-id> <file>", cmdImageAdd},
	"image-delete": {"<item-id> <key>", cmdImageDelete},
	"book":         {"-start YYYY-MM-DD -end YYYY-MM-DD [-notes <text>] [-deposit <amount>] -accept-terms <item-id>", cmdBook},
	"booking":      {"<booking-id>", cmdBooking},
	"bookings":     {"[-owned] [-overdue] [-status <status>]", cmdBookings},
	"confirm":      {"[-notes <text>] <booking-id>", cmdConfirm},
	"reject":       {"[-reason <text>] <booking-id>", cmdReject},
	"activate":     {"[-deposit-paid] <booking-id>", cmdActivate},
	"complete":     {"<booking-id>", cmdComplete},
	"cancel":       {"[-reason <text>] <booking-id>", cmdCancel},
	"can-rate":     {"<booking-id>", cmdCanRate},
	"rate":         {"-type <rating-type> -rating 1-5 [-comment <text>] [-anonymous] <booking-id>", cmdRate},
	"ratings":      {"-user <id> [-given] | -item <id>", cmdRatings},
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError{err.Error()}
	}
	if fs.NArg() != positional {
		return nil, usageError{fmt.Sprintf("expected %d argument(s), got %d", positional, fs.NArg())}
	}
	return fs.Args(), nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{"invalid " + what + ": " + s}
	}
	return id, nil
}

// idArg parses a command that takes only flags and one ID.
func idArg(fs *flag.FlagSet, args []string, what string) (int64, error) {
	rest, err := parse(fs, args, 1)
	if err != nil {
		return 0, err
	}
	return parseID(rest[0], what)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// password returns the flag value, then LOCALLEND_PASSWORD, then a line from stdin.
func (a *app) password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("LOCALLEND_PASSWORD"); v != "" {
		return v, nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	var r client.Registration
	var password string
	fs.StringVar(&r.Username, "u", "", "")
	fs.StringVar(&r.Name, "n", "", "")
	fs.StringVar(&r.Email, "e", "", "")
	fs.StringVar(&r.PhoneNumber, "phone", "", "")
	fs.StringVar(&password, "p", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if r.Username == "" || r.Name == "" || r.Email == "" {
		return usageError{"-u, -n and -e are required"}
	}

	var err error
	if r.Password, err = a.password(password); err != nil {
		return err
	}
	s, err := a.client.Register(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and logged in as %s (id %d)\n", s.User.Username, s.User.ID)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	password := fs.String("p", "", "")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	pw, err := a.password(*password)
	if err != nil {
		return err
	}
	s, err := a.client.Login(ctx, rest[0], pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", s.User.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if _, err := parse(newFlags("logout"), args, 0); err != nil {
		return err
	}
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdMe(ctx context.Context, a *app, args []string) error {
	if _, err := parse(newFlags("me"), args, 0); err != nil {
		return err
	}
	u, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	return a.print(u)
}

func cmdPasswd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("passwd")
	current := fs.String("old", "", "")
	next := fs.String("new", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if *current == "" || *next == "" {
		return usageError{"-old and -new are required"}
	}
	if err := a.client.ChangePassword(ctx, *current, *next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("profile"), args, "user id")
	if err != nil {
		return err
	}
	p, err := a.client.Profile(ctx, id)
	if err != nil {
		return err
	}
	return a.print(p)
}

func cmdCategories(ctx context.Context, a *app, args []string) error {
	fs := newFlags("categories")
	var q client.CategoryQuery
	fs.StringVar(&q.Sort, "sort", "", "")
	fs.BoolVar(&q.RootOnly, "root", false, "")
	term := fs.String("search", "", "")
	parent := fs.Int64("parent", 0, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	var categories []client.Category
	var err error
	switch {
	case *term != "":
		categories, err = a.client.SearchCategories(ctx, *term)
	case *parent > 0:
		categories, err = a.client.Subcategories(ctx, *parent)
	default:
		categories, err = a.client.Categories(ctx, q)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tITEMS\tSUBCATEGORIES")
	for _, c := range categories {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\n", c.ID, c.Name, c.ItemCount, c.HasSubcategories)
	}
	return tw.Flush()
}

func cmdItems(ctx context.Context, a *app, args []string) error {
	fs := newFlags("items")
	var q client.ItemQuery
	fs.StringVar(&q.Query, "q", "", "")
	fs.Int64Var(&q.CategoryID, "category", 0, "")
	fs.StringVar(&q.Condition, "condition", "", "")
	fs.StringVar(&q.Status, "status", "", "")
	fs.Int64Var(&q.OwnerID, "owner", 0, "")
	fs.StringVar(&q.Sort, "sort", "", "")
	fs.IntVar(&q.Page, "page", 0, "")
	fs.IntVar(&q.Size, "size", 0, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	page, err := a.client.Items(ctx, q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCONDITION\tSTATUS\tDEPOSIT\tRATING\tOWNER")
	for _, it := range page.Content {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%.1f (%d)\t%s\n",
			it.ID, it.Name, it.CategoryName, it.Condition, it.Status, it.Deposit,
			it.AverageRating, it.RatingCount, it.OwnerUsername)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Page %d of %d, %d item(s)\n", page.Page+1, max(page.TotalPages, 1), page.TotalElements)
	return nil
}

func cmdItem(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("item"), args, "item id")
	if err != nil {
		return err
	}
	item, err := a.client.Item(ctx, id)
	if err != nil {
		return err
	}
	return a.print(item)
}

func itemFlags(name string) (*flag.FlagSet, *client.ItemInput) {
	fs := newFlags(name)
	in := &client.ItemInput{}
	fs.StringVar(&in.Name, "name", "", "")
	fs.StringVar(&in.Description, "desc", "", "")
	fs.Int64Var(&in.CategoryID, "category", 0, "")
	fs.StringVar(&in.Condition, "condition", "", "")
	fs.Float64Var(&in.Deposit, "deposit", 0, "")
	return fs, in
}

func cmdItemAdd(ctx context.Context, a *app, args []string) error {
	fs, in := itemFlags("item-add")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if in.Name == "" || in.CategoryID == 0 {
		return usageError{"-name and -category are required"}
	}
	item, err := a.client.CreateItem(ctx, *in)
	if err != nil {
		return err
	}
	return a.print(item)
}

func cmdItemEdit(ctx context.Context, a *app, args []string) error {
	fs, in := itemFlags("item-edit")
	id, err := idArg(fs, args, "item id")
	if err != nil {
		return err
	}
	if in.Name == "" || in.CategoryID == 0 {
		return usageError{"-name and -category are required"}
	}
	item, err := a.client.UpdateItem(ctx, id, *in)
	if err != nil {
		return err
	}
	return a.print(item)
}

func cmdItemStatus(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags("item-status"), args, 2)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0], "item id")
	if err != nil {
		return err
	}
	item, err := a.client.SetItemStatus(ctx, id, strings.ToUpper(rest[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %d is now %s\n", item.ID, item.Status)
	return nil
}

func cmdItemDelete(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("item-delete"), args, "item id")
	if err != nil {
		return err
	}
	if err := a.client.DeleteItem(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %d deleted\n", id)
	return nil
}

func cmdAvailability(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("availability"), args, "item id")
	if err != nil {
		return err
	}
	ranges, err := a.client.Availability(ctx, id)
	if err != nil {
		return err
	}
	if len(ranges) == 0 {
		fmt.Fprintln(a.out, "No upcoming bookings")
		return nil
	}
	for _, r := range ranges {
		fmt.Fprintf(a.out, "%s to %s  %s (booking %d)\n", r.StartDate, r.EndDate, r.Status, r.BookingID)
	}
	return nil
}

func cmdImageAdd(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags("image-add"), args, 2)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0], "item id")
	if err != nil {
		return err
	}

	f, err := os.Open(rest[1])
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := a.client.UploadImage(ctx, id, filepath.Base(rest[1]), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s\n", img.URL)
	return nil
}

func cmdImageDelete(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags("image-delete"), args, 2)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0], "item id")
	if err != nil {
		return err
	}
	if err := a.client.DeleteImage(ctx, id, rest[1]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Image deleted")
	return nil
}

func cmdBook(ctx context.Context, a *app, args []string) error {
	fs := newFlags("book")
	start := fs.String("start", "", "")
	end := fs.String("end", "", "")
	notes := fs.String("notes", "", "")
	deposit := fs.Float64("deposit", -1, "")
	accept := fs.Bool("accept-terms", false, "")
	id, err := idArg(fs, args, "item id")
	if err != nil {
		return err
	}

	req := client.BookingRequest{BookingNotes: *notes, AcceptTerms: *accept}
	if req.StartDate, err = model.ParseDate(*start); err != nil {
		return usageError{"-start: " + err.Error()}
	}
	if req.EndDate, err = model.ParseDate(*end); err != nil {
		return usageError{"-end: " + err.Error()}
	}
	if *deposit >= 0 {
		req.DepositAmount = deposit
	}

	item, err := a.client.Item(ctx, id)
	if err != nil {
		return err
	}
	b, err := a.client.CreateBooking(ctx, item, req)
	if err != nil {
		return err
	}
	return a.print(b)
}

func cmdBooking(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("booking"), args, "booking id")
	if err != nil {
		return err
	}
	b, err := a.client.Booking(ctx, id)
	if err != nil {
		return err
	}
	return a.print(b)
}

func cmdBookings(ctx context.Context, a *app, args []string) error {
	fs := newFlags("bookings")
	owned := fs.Bool("owned", false, "")
	overdue := fs.Bool("overdue", false, "")
	status := fs.String("status", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	var filter client.BookingStatus
	if *status != "" {
		s, err := model.ParseBookingStatus(strings.ToUpper(*status))
		if err != nil {
			return usageError{err.Error()}
		}
		filter = s
	}

	var bookings []client.Booking
	var err error
	switch {
	case *overdue:
		bookings, err = a.client.OverdueBookings(ctx)
	case *owned:
		bookings, err = a.client.OwnedBookings(ctx, filter)
	default:
		bookings, err = a.client.MyBookings(ctx, filter)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tBORROWER\tOWNER\tSTART\tEND\tSTATUS")
	for _, b := range bookings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.ItemName, b.BorrowerUsername, b.OwnerUsername, b.StartDate, b.EndDate, b.Status)
	}
	return tw.Flush()
}

func (a *app) printTransition(b *client.Booking, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Booking %d is now %s\n", b.ID, b.Status)
	return nil
}

func cmdConfirm(ctx context.Context, a *app, args []string) error {
	fs := newFlags("confirm")
	notes := fs.String("notes", "", "")
	id, err := idArg(fs, args, "booking id")
	if err != nil {
		return err
	}
	return a.printTransition(a.client.Confirm(ctx, id, *notes))
}

func cmdReject(ctx context.Context, a *app, args []string) error {
	fs := newFlags("reject")
	reason := fs.String("reason", "", "")
	id, err := idArg(fs, args, "booking id")
	if err != nil {
		return err
	}
	return a.printTransition(a.client.Reject(ctx, id, *reason))
}

func cmdActivate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("activate")
	paid := fs.Bool("deposit-paid", false, "")
	id, err := idArg(fs, args, "booking id")
	if err != nil {
		return err
	}
	return a.printTransition(a.client.Activate(ctx, id, *paid))
}

func cmdComplete(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("complete"), args, "booking id")
	if err != nil {
		return err
	}
	return a.printTransition(a.client.Complete(ctx, id))
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	fs := newFlags("cancel")
	reason := fs.String("reason", "", "")
	id, err := idArg(fs, args, "booking id")
	if err != nil {
		return err
	}
	return a.printTransition(a.client.Cancel(ctx, id, *reason))
}

func cmdCanRate(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("can-rate"), args, "booking id")
	if err != nil {
		return err
	}
	res, err := a.client.CanRate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	if len(res.RatingTypes) > 0 {
		fmt.Fprintf(a.out, "Available: %s\n", strings.Join(res.RatingTypes, ", "))
	}
	return nil
}

func cmdRate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("rate")
	var req client.RatingRequest
	fs.StringVar(&req.RatingType, "type", "", "")
	fs.IntVar(&req.Rating, "rating", 0, "")
	fs.StringVar(&req.Comment, "comment", "", "")
	fs.BoolVar(&req.IsAnonymous, "anonymous", false, "")
	id, err := idArg(fs, args, "booking id")
	if err != nil {
		return err
	}
	req.BookingID = id
	req.RatingType = strings.ToUpper(req.RatingType)

	r, err := a.client.Rate(ctx, req)
	if err != nil {
		return err
	}
	return a.print(r)
}

func cmdRatings(ctx context.Context, a *app, args []string) error {
	fs := newFlags("ratings")
	userID := fs.Int64("user", 0, "")
	itemID := fs.Int64("item", 0, "")
	given := fs.Bool("given", false, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	var ratings []client.Rating
	var err error
	switch {
	case *userID > 0 && *itemID == 0:
		ratings, err = a.client.UserRatings(ctx, *userID, *given)
	case *itemID > 0 && *userID == 0:
		ratings, err = a.client.ItemRatings(ctx, *itemID)
	default:
		return usageError{"exactly one of -user and -item is required"}
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tTYPE\tRATING\tBY\tCOMMENT")
	for _, r := range ratings {
		by := r.RaterUsername
		if r.Anonymous {
			by = "anonymous"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", r.BookingID, r.Type, r.Value, by, r.Comment)
	}
	return tw.Flush()
}
