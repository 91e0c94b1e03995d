// Command nearvibe browses adventures from a terminal against a running API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"backend-nearvibe/internal/browse"
	"backend-nearvibe/internal/config"
	"backend-nearvibe/internal/filter"
	"backend-nearvibe/internal/logger"
	"backend-nearvibe/internal/shared/geo"

	"go.uber.org/zap"
)

var newFetcher = func(baseURL string, limit int) browse.Fetcher {
	return browse.HTTPFetcher{BaseURL: baseURL, Limit: limit}
}

func main() {
	cfg := config.Load()
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		zl = zap.NewNop()
	}
	defer func() { _ = zl.Sync() }()

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdin, os.Stdout, zl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	baseURL     string
	lat, lng    string
	categories  string
	maxDuration int
	minRating   int
	maxDistance int
	limit       int
	view        string
	interactive bool
}

func parseFlags(cfg config.Config, args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("nearvibe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.baseURL, "api", cfg.APIBaseURL, "API base url")
	fs.StringVar(&o.lat, "lat", "", "latitude of the current location")
	fs.StringVar(&o.lng, "lng", "", "longitude of the current location")
	fs.StringVar(&o.categories, "categories", "", "comma separated categories")
	fs.IntVar(&o.maxDuration, "max-duration", 0, "maximum duration in minutes")
	fs.IntVar(&o.minRating, "min-rating", 0, "minimum rating (3, 4 or 5)")
	fs.IntVar(&o.maxDistance, "max-distance", 0, "maximum distance in km")
	fs.IntVar(&o.limit, "limit", 0, "page size")
	fs.StringVar(&o.view, "view", string(browse.ListView), "list or map")
	fs.BoolVar(&o.interactive, "i", false, "read commands from stdin")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.view != string(browse.ListView) && o.view != string(browse.MapView) {
		return options{}, fmt.Errorf("view must be list or map")
	}
	return o, nil
}

func (o options) location() (*geo.Point, error) {
	if o.lat == "" && o.lng == "" {
		return nil, nil
	}
	p, err := filter.ParsePoint(o.lat, o.lng)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (o options) state() (filter.State, error) {
	var st filter.State
	for _, c := range strings.Split(o.categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			st = st.ToggleCategory(c)
		}
	}
	if o.maxDuration > 0 {
		st = st.SetMaxDuration(o.maxDuration)
	}
	if o.maxDistance > 0 {
		st = st.SetMaxDistance(o.maxDistance)
	}
	return st.SetMinRating(filter.Rating(o.minRating))
}

func run(ctx context.Context, cfg config.Config, args []string, in io.Reader, out io.Writer, log *zap.Logger) error {
	o, err := parseFlags(cfg, args)
	if err != nil {
		return err
	}
	at, err := o.location()
	if err != nil {
		return err
	}
	st, err := o.state()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	session := browse.NewSynchronizer(ctx, newFetcher(o.baseURL, o.limit), browse.Hooks{
		ScrollIntoView:  func(id string) { printf("> %s\n", id) },
		HighlightMarker: func(id string) { printf("* %s\n", id) },
	}, log)
	session.SetViewMode(browse.ViewMode(o.view))
	session.SetFilter(st)
	session.ResolveLocation(at)
	session.Wait()
	render(printf, session.Snapshot())

	if !o.interactive {
		return nil
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 1 && fields[0] == "help" {
			printf("%s\n", usage())
			continue
		}
		quit, err := apply(session, fields)
		if err != nil {
			printf("error: %v\n", err)
			continue
		}
		if quit {
			return nil
		}
		session.Wait()
		render(printf, session.Snapshot())
	}
	return sc.Err()
}

// apply runs one interactive command against the session.
func apply(s *browse.Synchronizer, fields []string) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	arg := strings.Join(fields[1:], " ")
	num := func() (int, error) {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("%s needs a number", fields[0])
		}
		return n, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "toggle":
		s.Update(func(st filter.State) filter.State { return st.ToggleCategory(arg) })
	case "duration":
		n, err := num()
		if err != nil {
			return false, err
		}
		s.Update(func(st filter.State) filter.State { return st.SetMaxDuration(n) })
	case "distance":
		n, err := num()
		if err != nil {
			return false, err
		}
		if n <= 0 {
			s.Update(func(st filter.State) filter.State { return st.ClearMaxDistance() })
			break
		}
		s.Update(func(st filter.State) filter.State { return st.SetMaxDistance(n) })
	case "rating":
		n, err := num()
		if err != nil {
			return false, err
		}
		var rerr error
		s.Update(func(st filter.State) filter.State {
			next, err := st.SetMinRating(filter.Rating(n))
			if err != nil {
				rerr = err
				return st
			}
			return next
		})
		if rerr != nil {
			return false, rerr
		}
	case "clear":
		s.SetFilter(filter.State{})
	case "page":
		n, err := num()
		if err != nil {
			return false, err
		}
		s.SetPage(n)
	case "view":
		if arg != string(browse.ListView) && arg != string(browse.MapView) {
			return false, fmt.Errorf("view must be list or map")
		}
		s.SetViewMode(browse.ViewMode(arg))
	case "select":
		if s.Snapshot().Mode == browse.MapView {
			s.SelectFromMap(arg)
		} else {
			s.SelectFromList(arg)
		}
	case "refresh":
		s.Refresh()

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func usage() string {
	durations := make([]string, len(filter.DurationChips))
	for i, d := range filter.DurationChips {
		durations[i] = strconv.Itoa(d)
	}
	return "commands: toggle <category>, duration <minutes>, distance <km>, rating <0|3|4|5>, clear, " +
		"page <n>, view <list|map>, select <id>, refresh, quit\n" +
		"categories: " + strings.Join(filter.Categories, ", ") + "\n" +
		"durations: " + strings.Join(durations, ", ")
}

func render(printf func(string, ...any), snap browse.Snapshot) {
	if snap.Error != "" {
		printf("%s\n", snap.Error)
	}
	p := snap.Pagination
	filters := "no filters"
	if !snap.Filter.IsEmpty() {
		filters = "filtered"
	}
	printf("[%s] %d adventures, page %d of %d, %s\n", snap.Mode, p.Total, p.Page, p.PageCount, filters)
	for _, a := range snap.Adventures {
		mark := " "
		if a.ID == snap.Selected {
			mark = "*"
		}
		rating := "-"
		if a.Rating != nil {
			rating = strconv.FormatFloat(*a.Rating, 'f', 1, 64)
		}
		if snap.Mode == browse.MapView {
			pt := a.Location.Point()
			printf("%s %s (%.4f, %.4f) %s\n", mark, a.ID, pt.Lat, pt.Lng, a.Title)
			continue
		}
		away := ""
		if snap.Location != nil {
			away = fmt.Sprintf("  %.1fkm", geo.DistanceKm(*snap.Location, a.Location.Point()))
		}
		printf("%s %s  %s  %dmin  %s  rating %s%s\n", mark, a.ID, a.Title, a.Duration, strings.Join(a.Category, ", "), rating, away)
	}
}
