package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/media"
	"github.com/pairline/pairline/internal/profile"
	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/session"
	"github.com/pairline/pairline/internal/ui"
)

var flagAnswerAny bool

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Find a stranger and start chatting",
	Long: `Connect to the matchmaking server, register your profile and get
paired with the first available stranger.

Examples:
  pairline chat
  pairline chat --server ws://pairline.example.com/ws
  pairline chat --answer-any`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	chatCmd.Flags().BoolVar(&flagAnswerAny, "answer-any", false,
		"answer call offers from any session, not just the matched peer")
	rootCmd.AddCommand(chatCmd)
}

func runChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	prof, err := loadOrPromptProfile()
	if err != nil {
		return err
	}

	policy := session.AnswerMatchedPeer
	if flagAnswerAny {
		policy = session.AnswerAny
	}

	log := slog.Default()
	ctrl := session.New(session.Config{
		Transport:         session.NewWebsocketTransport(cfg.ServerURL, cfg.ConnectTimeout),
		Provider:          media.NewPionProvider(cfg, log),
		Capture:           media.NullCapture{},
		AnswerPolicy:      policy,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	// The first event is the session assignment; the event channel
	// closing instead means the dial failed.
	sp := ui.NewConnectionSpinner("Connecting to " + cfg.ServerURL + "...")
	sp.Start()
	if _, ok := <-ctrl.Events(); !ok {
		sp.Error("Could not reach the server")
		return <-runErr
	}
	sp.Success("Connected")

	ctrl.Register(prof)

	program := tea.NewProgram(ui.NewChatModel(ctrl, prof))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run chat ui: %w", err)
	}

	cancel()
	if err := <-runErr; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// loadOrPromptProfile returns the saved profile, or asks for one and
// saves it.
func loadOrPromptProfile() (protocol.Profile, error) {
	store, err := profile.NewStore()
	if err != nil {
		return protocol.Profile{}, err
	}

	saved, err := store.Load()
	if err == nil {
		ui.PrintSuccessf("Welcome back, %s!", saved.FullName)
		return saved, nil
	}

	p, err := promptProfile()
	if err != nil {
		return protocol.Profile{}, err
	}
	if err := store.Save(p); err != nil {
		return protocol.Profile{}, err
	}
	return p, nil
}

func promptProfile() (protocol.Profile, error) {
	fmt.Println(ui.TitleStyle.Render("Tell us about yourself"))
	reader := bufio.NewReader(os.Stdin)

	var p protocol.Profile
	for {
		p.FullName = promptLine(reader, "Name: ")
		p.Age = promptLine(reader, "Age: ")
		p.Gender = promptLine(reader, "Gender: ")

		if err := profile.Validate(p); err != nil {
			ui.PrintWarning(err.Error())
			continue
		}
		return p, nil
	}
}

func promptLine(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
