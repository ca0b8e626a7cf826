// Command handoff is the device-side CLI: it sends files through
// short-lived QR sessions and packs them into self-contained offline
// documents.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/caffeinepub/ofs/internal/api"
	"github.com/caffeinepub/ofs/internal/client"
	"github.com/caffeinepub/ofs/internal/filesize"
	"github.com/caffeinepub/ofs/internal/locator"
	"github.com/caffeinepub/ofs/internal/models"
	"github.com/caffeinepub/ofs/internal/pack"
	"github.com/caffeinepub/ofs/internal/scan"
	"github.com/caffeinepub/ofs/internal/session"
	"github.com/caffeinepub/ofs/internal/sink"
)

const usage = `Usage: handoff <command> [flags]

Commands:
  send     upload a file and share it through a QR session
  receive  redeem a scanned session and save the file
  pack     encode a file into a self-contained offline document
  unpack   extract the file from an offline document
  history  show your transfer history

Run "handoff <command> -h" for command flags.
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(os.Args[2:])
	case "receive":
		err = runReceive(os.Args[2:])
	case "pack":
		err = runPack(os.Args[2:])
	case "unpack":
		err = runUnpack(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "handoff: %v\n", err)
		os.Exit(1)
	}
}

// serverFlags are the flags every online command shares.
type serverFlags struct {
	server   string
	identity string
	token    string
	secret   string
}

func (f *serverFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.server, "server", envOr("OFS_SERVER", "http://localhost:8090"), "handoff server base URL")
	fs.StringVar(&f.identity, "identity", envOr("OFS_IDENTITY", ""), "identity to act as")
	fs.StringVar(&f.token, "token", envOr("OFS_TOKEN", ""), "bearer token")
	fs.StringVar(&f.secret, "secret", envOr("OFS_SECRET", ""), "shared JWT secret, mints a token for -identity")
}

func (f *serverFlags) newClient() (*client.Client, error) {
	token := f.token
	if token == "" && f.secret != "" {
		if f.identity == "" {
			return nil, errors.New("-secret needs -identity to mint a token")
		}
		var err error
		token, err = api.IssueToken(f.identity, f.secret)
		if err != nil {
			return nil, err
		}
	}
	return client.New(f.server, token), nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	var srv serverFlags
	srv.register(fs)
	expiry := fs.Duration("expiry", session.DefaultExpiry, "session lifetime")
	origin := fs.String("origin", "", "override the locator origin (defaults to the server-configured one)")
	qrOut := fs.String("qr", "", "also write the QR code to this PNG file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("send needs exactly one file argument")
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if check := filesize.Check(info.Size()); check.Level == filesize.LevelError {
		return errors.New(check.Message)
	} else if check.Level == filesize.LevelWarning {
		fmt.Println(check.Message)
	}

	cl, err := srv.newClient()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	md, err := cl.UploadFile(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (%s)\n", md.Name, filesize.Format(md.SizeBytes))

	identity := srv.identity
	if identity == "" {
		identity = api.AnonymousIdentity
	}
	mgr := session.NewManager(cl, clockwork.NewRealClock(), identity)

	created, err := cl.CreateSessionWithLocator(ctx, md.ID, *expiry)
	if err != nil {
		return err
	}
	sessionID := created.SessionID

	link := created.LocatorURL
	if *origin != "" {
		link = locator.Encode(*origin, sessionID)
	}

	code, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Println(code.ToSmallString(false))
	fmt.Printf("Scan the code or open: %s\n", link)

	if *qrOut != "" {
		if err := qrcode.WriteFile(link, qrcode.Medium, 256, *qrOut); err != nil {
			return err
		}
		fmt.Printf("QR code written to %s\n", *qrOut)
	}

	// Countdown until the session reaches a terminal state. Ctrl-C
	// invalidates the session so the code cannot be redeemed later.
	err = mgr.Countdown(ctx, sessionID, func(remaining time.Duration) {
		fmt.Printf("\rSession expires in %s   ", remaining.Round(time.Second))
	}, func(state models.SessionState) {
		fmt.Printf("\nSession %s\n", state)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nInvalidating session")
		return mgr.Invalidate(context.Background(), sessionID)
	}
	return err
}

func runReceive(args []string) error {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	var srv serverFlags
	srv.register(fs)
	dir := fs.String("dir", "./downloads", "download directory for automatic saves")
	yes := fs.Bool("yes", false, "skip the save prompt and download automatically")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("receive needs a session ID, locator URL, or QR image")
	}

	cl, err := srv.newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID, err := resolveSessionID(ctx, cl, fs.Arg(0))
	if err != nil {
		return err
	}

	start := time.Now()
	md, err := cl.RedeemSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if md == nil {
		return errors.New("session not available")
	}
	fmt.Printf("Receiving %s (%s) from %s\n", md.Name, filesize.Format(md.SizeBytes), md.UploaderID)

	_, data, err := cl.DownloadFile(ctx, md.ID)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	dest := &sink.Sink{DownloadDir: *dir}
	if !*yes {
		dest.Picker = &promptPicker{in: bufio.NewReader(os.Stdin)}
	}

	path, err := dest.Save(ctx, data, md.Name, md.MimeType)
	if errors.Is(err, sink.ErrCancelled) {
		fmt.Println("Save cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", path)

	identity := srv.identity
	if identity == "" {
		identity = api.AnonymousIdentity
	}
	if _, err := cl.RecordTransfer(ctx, md.UploaderID, identity, md.ID, md.Name, duration, true); err != nil {
		fmt.Printf("Warning: failed to record transfer: %v\n", err)
	}
	return nil
}

func runPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	out := fs.String("o", "", "output path (defaults next to the input)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("pack needs exactly one file argument")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if check := filesize.Check(int64(len(data))); check.Level == filesize.LevelError {
		return errors.New(check.Message)
	} else if check.Level == filesize.LevelWarning {
		fmt.Println(check.Message)
	}

	name := filepath.Base(path)
	doc, err := pack.Encode(data, name, mime.TypeByExtension(filepath.Ext(name)))
	if err != nil {
		return err
	}

	target := *out
	if target == "" {
		target = filepath.Join(filepath.Dir(path), pack.SuggestedDocumentName(name))
	}
	if err := os.WriteFile(target, doc, 0644); err != nil {
		return err
	}
	fmt.Printf("Packed %s into %s\n", name, target)
	return nil
}

func runUnpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	dir := fs.String("dir", ".", "download directory for automatic saves")
	yes := fs.Bool("yes", false, "skip the save prompt and extract automatically")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("unpack needs exactly one document argument")
	}

	doc, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	pkg, err := pack.Decode(doc)
	if err != nil {
		return err
	}
	fmt.Printf("Document holds %s (%s, %s)\n", pkg.FileName, pkg.MimeType, filesize.Format(pkg.SizeBytes))

	dest := &sink.Sink{DownloadDir: *dir}
	if !*yes {
		dest.Picker = &promptPicker{in: bufio.NewReader(os.Stdin)}
	}

	path, err := dest.Save(context.Background(), pkg.Payload, pkg.FileName, pkg.MimeType)
	if errors.Is(err, sink.ErrCancelled) {
		fmt.Println("Save cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Extracted to %s\n", path)
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	var srv serverFlags
	srv.register(fs)
	limit := fs.Int("limit", 20, "maximum number of records")
	fs.Parse(args)

	cl, err := srv.newClient()
	if err != nil {
		return err
	}

	records, err := cl.History(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No transfers yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSENDER\tRECEIVER\tFILE\tDURATION\tRESULT")
	for _, rec := range records {
		result := "ok"
		if !rec.Success {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
			rec.TransferTime.Local().Format("2006-01-02 15:04:05"),
			rec.Sender, rec.Receiver, rec.FileName, rec.DurationMs, result)
	}
	return w.Flush()
}

// resolveSessionID turns the receive argument into a session ID. A path
// to an image file is scanned for a QR code; anything else goes through
// the locator decoder directly.
func resolveSessionID(ctx context.Context, cl *client.Client, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return scanImage(ctx, cl, arg)
	}

	sessionID, ok := locator.Decode(arg)
	if !ok {
		return "", errors.New("the scanned payload holds no session")
	}
	return sessionID, nil
}

// scanImage runs the scan loop over a still image, validating candidates
// against the server before accepting one.
func scanImage(ctx context.Context, cl *client.Client, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decoding image %s: %w", path, err)
	}

	ctrl := scan.NewController(&stillFrame{img: img}, scan.NewQRDecoder(), clockwork.NewRealClock(), 0)
	ctrl.Validate = cl.ValidateSession
	ctrl.OnInvalid = func(raw string) {
		fmt.Printf("Ignoring unusable code: %q\n", raw)
	}

	// A still image either yields a session quickly or never will.
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sessionID, err := ctrl.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("no usable session found in %s", path)
	}
	return sessionID, err
}

// stillFrame serves the same decoded image for every frame request.
type stillFrame struct {
	img image.Image
}

func (s *stillFrame) Frame(ctx context.Context) (image.Image, error) {
	return s.img, nil
}

func (s *stillFrame) Close() error {
	return nil
}

// promptPicker asks on stdin where to save. Enter accepts the automatic
// download, a path saves there, q cancels.
type promptPicker struct {
	in *bufio.Reader
}

func (p *promptPicker) Pick(ctx context.Context, suggestedName, mimeType string) (sink.File, error) {
	fmt.Printf("Save %s as [enter = download dir, path = custom, q = cancel]: ", suggestedName)

	line, err := p.in.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)

	switch line {
	case "q", "Q":
		return nil, sink.ErrCancelled
	case "":
		return nil, errors.New("no location picked")
	}
	return os.Create(line)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
