package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-catalog-client/catalog"
	"github.com/jrsteele09/go-catalog-client/idle"
	"github.com/jrsteele09/go-catalog-client/session"
	"github.com/jrsteele09/go-catalog-client/tabsync"
)

func newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if password == "" {
				password = promptLine("Password: ")
			}
			user, err := a.sess.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account (log in separately afterwards)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if password == "" {
				password = promptLine("Password: ")
			}
			confirm := promptLine("Confirm password: ")
			if _, err := a.sess.Register(cmd.Context(), args[0], password, confirm); err != nil {
				return err
			}
			fmt.Println("Account created. Run 'catalog login' to sign in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session in every tab sharing the state file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.sess.Logout(session.LogoutManual)
			channel := tabsync.New(a.store)
			channel.AnnounceLogout(time.Now())
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			snap := a.sess.Snapshot()
			if !snap.IsAuthenticated() {
				fmt.Println("Not signed in.")
				return nil
			}
			fmt.Printf("Signed in as %s\n", snap.User.Email)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var scripts bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch and print the collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if scripts {
				if err := a.scripts.FetchAll(cmd.Context()); err != nil {
					return err
				}
				printScripts(a.scripts.Items())
				return nil
			}
			if err := a.books.FetchAll(cmd.Context()); err != nil {
				return err
			}
			printBooks(a.books.Items())
			return nil
		},
	}
	cmd.Flags().BoolVar(&scripts, "scripts", false, "operate on scripts instead of books")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var scripts bool
	var page, limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if scripts {
				if err := a.scripts.Search(cmd.Context(), args[0], page, limit); err != nil {
					return err
				}
				printScripts(a.scripts.Items())
				return nil
			}
			if err := a.books.Search(cmd.Context(), args[0], page, limit); err != nil {
				return err
			}
			printBooks(a.books.Items())
			return nil
		},
	}
	cmd.Flags().BoolVar(&scripts, "scripts", false, "operate on scripts instead of books")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&limit, "limit", 10, "results per page")
	return cmd
}

func newAddCmd() *cobra.Command {
	var scripts bool
	cmd := &cobra.Command{
		Use:   "add <title> <author|description>",
		Short: "Create an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if scripts {
				item, err := a.scripts.Create(cmd.Context(), catalog.Script{Title: args[0], Description: args[1]})
				if err != nil {
					return err
				}
				fmt.Printf("Created script %s\n", item.CanonicalID())
				return nil
			}
			item, err := a.books.Create(cmd.Context(), catalog.Book{Title: args[0], Author: args[1]})
			if err != nil {
				return err
			}
			fmt.Printf("Created book %s\n", item.CanonicalID())
			return nil
		},
	}
	cmd.Flags().BoolVar(&scripts, "scripts", false, "operate on scripts instead of books")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var scripts bool
	cmd := &cobra.Command{
		Use:   "update <id> <title> <author|description>",
		Short: "Update an item by either of its identifiers",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if scripts {
				_, err = a.scripts.Update(cmd.Context(), args[0], catalog.Script{Title: args[1], Description: args[2]})
			} else {
				_, err = a.books.Update(cmd.Context(), args[0], catalog.Book{Title: args[1], Author: args[2]})
			}
			if err != nil {
				return err
			}
			fmt.Println("Updated.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&scripts, "scripts", false, "operate on scripts instead of books")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var scripts bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an item by either of its identifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if scripts {
				err = a.scripts.Delete(cmd.Context(), args[0])
			} else {
				err = a.books.Delete(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&scripts, "scripts", false, "operate on scripts instead of books")
	return cmd
}

// newWatchCmd runs the full session machinery interactively: every input
// line counts as activity and non-empty lines feed the debounced search.
// Running two watch processes against the same state file demonstrates the
// cross-tab sync: logging out of one logs out the other.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the idle watcher and debounced search interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			displayAppname(a.cfg.GetAppName())

			if !a.sess.IsAuthenticated() {
				return fmt.Errorf("not signed in, run 'catalog login' first")
			}

			channel := tabsync.New(a.store)
			watcher := idle.New(
				func() { a.sess.Logout(session.LogoutIdle) },
				idle.WithIdleLimit(a.cfg.GetIdleLimit()),
				idle.WithWarningLimit(a.cfg.GetWarningLimit()),
				idle.WithCheckInterval(a.cfg.GetCheckInterval()),
				idle.WithChannel(channel),
				idle.WithSessionCheck(a.sess.IsAuthenticated),
				idle.WithWarning(func(remaining time.Duration) {
					fmt.Printf("\nInactivity warning: session ends in %s\n", remaining.Round(time.Second))
				}),
			)
			channel.OnActivity(watcher.ObserveRemote)
			channel.OnForcedLogout(func() { a.sess.Logout(session.LogoutRemote) })
			channel.Listen()
			defer channel.Close()

			done := make(chan struct{})
			var endOnce sync.Once
			cancelSub := a.sess.Subscribe(func(snap session.Snapshot) {
				if !snap.IsAuthenticated() {
					endOnce.Do(func() {
						fmt.Println("\nSession ended.")
						watcher.Stop()
						close(done)
					})
				}
			})
			defer cancelSub()

			watcher.Start()
			defer watcher.Stop()

			searcher := catalog.NewSearcher(a.books, catalog.WithDebounce[catalog.Book](a.cfg.GetSearchDebounce()))
			defer searcher.Stop()

			if err := a.books.FetchAll(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("initial fetch failed")
			}
			printBooks(a.books.Items())
			fmt.Println("Type to search (empty line lists everything, Ctrl-D quits).")

			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					watcher.Touch()
					searcher.Input(scanner.Text())
				}
			}()

			<-done
			return nil
		},
	}
}

func printBooks(books []catalog.Book) {
	if len(books) == 0 {
		fmt.Println("(no books)")
		return
	}
	for _, b := range books {
		fmt.Printf("%-12s %-30s %s\n", b.CanonicalID(), b.Title, b.Author)
	}
}

func printScripts(scripts []catalog.Script) {
	if len(scripts) == 0 {
		fmt.Println("(no scripts)")
		return
	}
	for _, s := range scripts {
		fmt.Printf("%-12s %-30s %s\n", s.CanonicalID(), s.Title, s.Description)
	}
}

func promptLine(prompt string) string {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
