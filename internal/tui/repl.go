package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"scrapechat/internal/models"
	"scrapechat/internal/session"
)

const helpText = `Commands:
  <url>            scrape a page and summarize it
  <text>           ask about the most recently scraped page
  /scrape <url>    scrape explicitly
  /new             start a new conversation
  /list            list conversations
  /open <n|id>     switch to a conversation
  /delete <n|id>   delete a conversation
  /reset           delete all conversations and the saved history
  /show            print the active conversation
  /models          list available models
  /model <name>    select the model
  /help            show this help
  /quit            exit`

// ModelLister lists the models the backend serves.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Options tunes the REPL output.
type Options struct {
	// Markdown renders system replies with glamour. Enable only for terminals.
	Markdown bool
	Width    int
}

// REPL is a line-oriented chat front-end over a session.Store.
type REPL struct {
	store    *session.Store
	lister   ModelLister
	scanner  *bufio.Scanner
	out      io.Writer
	styles   styles
	renderer *glamour.TermRenderer
}

func New(store *session.Store, lister ModelLister, in io.Reader, out io.Writer, opts Options) *REPL {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	r := &REPL{
		store:   store,
		lister:  lister,
		scanner: s,
		out:     out,
		styles:  newStyles(out),
	}
	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = 80
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			r.renderer = renderer
		}
	}
	return r
}

// Status prints progress text from the store. Empty text is ignored.
func (r *REPL) Status(text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(r.out, r.styles.status.Render(text))
}

// Run reads commands until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.selectDefaultModel(ctx)
	fmt.Fprintln(r.out, r.styles.title.Render("scrapechat")+r.styles.dim.Render("  type /help for commands"))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, r.prompt())
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(r.out)
			return nil
		}
		quit, err := r.Handle(ctx, r.scanner.Text())
		if err != nil {
			r.printError(err)
		}
		if quit {
			return nil
		}
	}
}

// Handle executes one input line. It reports true when the user asked to quit.
func (r *REPL) Handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line, looksLikeURL(line))
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		c := r.store.CreateConversation(ctx)
		fmt.Fprintf(r.out, "Started %s\n", r.styles.title.Render(c.Title))
	case "/list":
		r.list()
	case "/open":
		c, err := r.resolve(arg)
		if err != nil {
			return false, err
		}
		r.store.Select(c.ID)
		r.show()
	case "/delete":
		c, err := r.resolve(arg)
		if err != nil {
			return false, err
		}
		r.store.Delete(ctx, c.ID)
		fmt.Fprintf(r.out, "Deleted %s\n", c.Title)
	case "/reset":
		if err := r.store.Reset(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "All conversations deleted")
	case "/show":
		r.show()
	case "/models":
		return false, r.listModels(ctx)
	case "/model":
		if arg == "" {
			fmt.Fprintf(r.out, "Current model: %s\n", r.modelName())
			return false, nil
		}
		r.store.SetModel(arg)
		fmt.Fprintf(r.out, "Model set to %s\n", arg)
	case "/scrape":
		if arg == "" {
			return false, errors.New("usage: /scrape <url>")
		}
		return false, r.send(ctx, arg, true)
	default:
		return false, fmt.Errorf("unknown command %s, type /help", cmd)
	}
	return false, nil
}

func (r *REPL) send(ctx context.Context, text string, isURL bool) error {
	if err := r.store.Send(ctx, text, isURL); err != nil {
		return err
	}
	active := r.store.Active()
	if active == nil || len(active.Messages) == 0 {
		return nil
	}
	r.printMessage(active.Messages[len(active.Messages)-1])
	return nil
}

func (r *REPL) selectDefaultModel(ctx context.Context) {
	if r.store.Model() != "" || r.lister == nil {
		return
	}
	names, err := r.lister.Models(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	if len(names) > 0 {
		r.store.SetModel(names[0])
	}
}

func (r *REPL) listModels(ctx context.Context) error {
	if r.lister == nil {
		return errors.New("model listing unavailable")
	}
	names, err := r.lister.Models(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(r.out, r.styles.dim.Render("No models available"))
		return nil
	}
	current := r.store.Model()
	for _, name := range names {
		if name == current {
			fmt.Fprintln(r.out, r.styles.active.Render("* "+name))
			continue
		}
		fmt.Fprintln(r.out, "  "+name)
	}
	return nil
}

func (r *REPL) list() {
	convs := r.store.Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(r.out, r.styles.dim.Render("No conversations yet"))
		return
	}
	var activeID string
	if a := r.store.Active(); a != nil {
		activeID = a.ID
	}
	for i, c := range convs {
		line := fmt.Sprintf("%2d. %s (%d messages, %s)", i+1, c.Title, len(c.Messages), c.Timestamp.Local().Format("2006-01-02 15:04"))
		if c.ID == activeID {
			fmt.Fprintln(r.out, r.styles.active.Render(line+" *"))
			continue
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *REPL) show() {
	active := r.store.Active()
	if active == nil {
		fmt.Fprintln(r.out, r.styles.dim.Render("No active conversation"))
		return
	}
	fmt.Fprintln(r.out, r.styles.title.Render(active.Title))
	for _, m := range active.Messages {
		r.printMessage(m)
	}
}

// resolve accepts a 1-based index from /list or a conversation id.
func (r *REPL) resolve(arg string) (*models.Conversation, error) {
	if arg == "" {
		return nil, errors.New("conversation number or id required")
	}
	convs := r.store.Conversations()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(convs) {
			return nil, fmt.Errorf("no conversation %d", n)
		}
		return convs[n-1], nil
	}
	for _, c := range convs {
		if c.ID == arg {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no conversation %s", arg)
}

func (r *REPL) printMessage(m *models.Message) {
	if m.Sender == models.SenderUser {
		fmt.Fprintln(r.out, r.styles.user.Render("you: ")+m.Content)
		return
	}
	if strings.HasPrefix(m.Content, "Error: ") {
		fmt.Fprintln(r.out, r.styles.err.Render(m.Content))
		return
	}
	if r.renderer != nil {
		if rendered, err := r.renderer.Render(m.Content); err == nil {
			fmt.Fprintln(r.out, strings.TrimRight(rendered, "\n"))
			return
		}
	}
	fmt.Fprintln(r.out, r.styles.system.Render(m.Content))
}

func (r *REPL) printError(err error) {
	fmt.Fprintln(r.out, r.styles.err.Render("error: "+err.Error()))
}

func (r *REPL) modelName() string {
	if m := r.store.Model(); m != "" {
		return m
	}
	return "(none)"
}

func (r *REPL) prompt() string {
	return r.styles.dim.Render("["+r.modelName()+"]") + " > "
}

// looksLikeURL reports whether text is a bare absolute http(s) URL.
func looksLikeURL(text string) bool {
	if strings.ContainsAny(text, " \t") {
		return false
	}
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	u, err := url.Parse(text)
	return err == nil && u.Host != ""
}
