// Command genctl drives the poster API from a terminal: list themes, start a
// generation, poll it and download the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"posterstudio/internal/auth"
	"posterstudio/internal/client"
	"posterstudio/internal/domain"
)

const usage = `usage: genctl <command> [flags]

commands:
  themes     list active themes
  start      upload a photo and run a generation
  poll       wait for a generation to finish
  generate   start, poll and download in one go
  token      issue a development token signed with SUPABASE_JWT_SECRET
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "themes":
		err = cmdThemes(ctx, args[1:], stdout)
	case "start":
		err = cmdStart(ctx, args[1:], stdout)
	case "poll":
		err = cmdPoll(ctx, args[1:], stdout)
	case "generate":
		err = cmdGenerate(ctx, args[1:], stdout)
	case "token":
		err = cmdToken(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "genctl: %v\n", err)
		return 1
	}
	return 0
}

type apiFlags struct {
	baseURL string
	token   string
}

func (a *apiFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&a.baseURL, "api", envOr("POSTER_API_URL", "http://localhost:8080"), "API base URL")
	fs.StringVar(&a.token, "token", os.Getenv("POSTER_TOKEN"), "bearer token")
}

func (a *apiFlags) client() *client.Client {
	return client.New(a.baseURL, strings.TrimSpace(a.token))
}

type startFlags struct {
	apiFlags
	themeID  string
	photo    string
	title    string
	subtitle string
	contact  string
}

func (s *startFlags) register(fs *flag.FlagSet) {
	s.apiFlags.register(fs)
	fs.StringVar(&s.themeID, "theme", "", "theme id")
	fs.StringVar(&s.photo, "photo", "", "path to the photo")
	fs.StringVar(&s.title, "title", "", "poster title")
	fs.StringVar(&s.subtitle, "subtitle", "", "poster subtitle")
	fs.StringVar(&s.contact, "contact", "", "contact line")
}

func (s *startFlags) start(ctx context.Context, api *client.Client) (string, error) {
	if strings.TrimSpace(s.themeID) == "" {
		return "", errors.New("-theme is required")
	}
	if strings.TrimSpace(s.photo) == "" {
		return "", errors.New("-photo is required")
	}
	f, err := os.Open(s.photo)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return api.Start(ctx, client.StartParams{
		ThemeID:   s.themeID,
		Title:     s.title,
		Subtitle:  s.subtitle,
		Contact:   s.contact,
		PhotoName: filepath.Base(s.photo),
		Photo:     f,
	})
}

type pollFlags struct {
	interval time.Duration
	timeout  time.Duration
	out      string
}

func (p *pollFlags) register(fs *flag.FlagSet) {
	fs.DurationVar(&p.interval, "interval", client.DefaultPollInterval, "poll interval")
	fs.DurationVar(&p.timeout, "timeout", client.DefaultPollTimeout, "give up after")
	fs.StringVar(&p.out, "out", "", "download the finished poster to this path")
}

func (p *pollFlags) wait(ctx context.Context, api *client.Client, id string, stdout io.Writer) error {
	res, err := client.Poll(ctx, api, id, client.PollOptions{
		Interval: p.interval,
		Timeout:  p.timeout,
		OnStatus: func(s domain.GenerationStatus) { fmt.Fprintf(stdout, "status: %s\n", s) },
	})
	if err != nil {
		return err
	}
	switch res.Outcome {
	case client.OutcomeSucceeded:
		fmt.Fprintf(stdout, "succeeded: %s\n", res.SignedURL)
		if p.out != "" {
			if err := download(ctx, res.SignedURL, p.out); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "saved %s\n", p.out)
		}
		return nil
	default:
		return errors.New(res.Message)
	}
}

func cmdThemes(ctx context.Context, args []string, stdout io.Writer) error {
	var a apiFlags
	fs := flag.NewFlagSet("themes", flag.ContinueOnError)
	a.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	themes, err := a.client().ListThemes(ctx)
	if err != nil {
		return err
	}
	for _, t := range themes {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", t.ID, t.Slug, t.Name)
	}
	return nil
}

func cmdStart(ctx context.Context, args []string, stdout io.Writer) error {
	var s startFlags
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	s.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := s.start(ctx, s.client())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func cmdPoll(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		a apiFlags
		p pollFlags
	)
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	a.register(fs)
	p.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: genctl poll [flags] <generation-id>")
	}
	return p.wait(ctx, a.client(), fs.Arg(0), stdout)
}

func cmdGenerate(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		s startFlags
		p pollFlags
	)
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	s.register(fs)
	p.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	api := s.client()
	id, err := s.start(ctx, api)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "generation: %s\n", id)
	return p.wait(ctx, api, id, stdout)
}

func cmdToken(args []string, stdout io.Writer) error {
	var (
		secret string
		userID string
		email  string
		ttl    time.Duration
	)
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.StringVar(&secret, "secret", os.Getenv("SUPABASE_JWT_SECRET"), "HS256 signing secret")
	fs.StringVar(&userID, "user", "", "user id (sub claim)")
	fs.StringVar(&email, "email", "", "email claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("-secret or SUPABASE_JWT_SECRET is required")
	}
	if userID == "" {
		return errors.New("-user is required")
	}
	token, err := auth.IssueToken(secret, userID, email, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func download(ctx context.Context, rawURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
