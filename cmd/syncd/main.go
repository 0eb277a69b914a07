package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
	"golang.org/x/term"

	"syncd/api"
	"syncd/config"
	"syncd/models"
	"syncd/reconcile"
	"syncd/session"
	"syncd/websocket"
)

const SyncdVersion = "0.1.0"

const defaultWait = 5 * time.Second

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "WARNING")
}

func main() {
	usage := `Syncd client.

The default urls come from SYNCD_API_URL and SYNCD_SOCKET_URL:
    api_url: http://localhost:8080
    socket_url: ws://localhost:8080/ws

Usage:
    syncd login [options] <username> [--password=<password>]
    syncd logout [options]
    syncd whoami [options]
    syncd friends [options]
    syncd profile [options] <user_id>
    syncd add [options] <user_id>
    syncd accept [options] <user_id>
    syncd decline [options] <user_id>
    syncd cancel [options] <user_id>
    syncd unfriend [options] <user_id>
    syncd business [options] <business_id>
    syncd follow [options] <business_id>
    syncd unfollow [options] <business_id>
    syncd invite [options] <event_id> <user_id>
    syncd watch [options]

Options:
    -h --help                    Show this screen.
    --version                    Show version.
    --api_url=<api_url>
    --socket_url=<socket_url>
    --session=<path>             Where the session token is kept.
    --password=<password>        Read from the terminal when omitted.
    --wait=<duration>            How long to wait for the server to answer [default: 5s].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], SyncdVersion)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newCLI(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	commands := []struct {
		name string
		run  func(context.Context, docopt.Opts) error
	}{
		{"login", cli.login},
		{"logout", cli.logout},
		{"whoami", cli.whoami},
		{"friends", cli.friends},
		{"profile", cli.profile},
		{"add", cli.friendAction(models.FriendActionCreate)},
		{"accept", cli.friendAction(models.FriendActionAccept)},
		{"decline", cli.friendAction(models.FriendActionDecline)},
		{"cancel", cli.friendAction(models.FriendActionCancel)},
		{"unfriend", cli.friendAction(models.FriendActionRemove)},
		{"business", cli.business},
		{"follow", cli.followAction(true)},
		{"unfollow", cli.followAction(false)},
		{"invite", cli.invite},
		{"watch", cli.watch},
	}
	for _, command := range commands {
		if selected, _ := opts.Bool(command.name); selected {
			if err := command.run(ctx, opts); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", command.name, err)
				os.Exit(1)
			}
			return
		}
	}
}

type cli struct {
	cfg         *config.Config
	client      *api.Client
	sessionPath string
	wait        time.Duration
}

func newCLI(opts docopt.Opts) (*cli, error) {
	cfg := config.Load()
	if apiURL, err := opts.String("--api_url"); err == nil && apiURL != "" {
		cfg.APIURL = apiURL
	}
	if socketURL, err := opts.String("--socket_url"); err == nil && socketURL != "" {
		cfg.SocketURL = socketURL
	}

	wait := defaultWait
	if waitStr, err := opts.String("--wait"); err == nil && waitStr != "" {
		wait, err = time.ParseDuration(waitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --wait (%s)", err)
		}
	}

	sessionPath, _ := opts.String("--session")
	if sessionPath == "" {
		var err error
		sessionPath, err = defaultSessionPath()
		if err != nil {
			return nil, err
		}
	}

	client, err := api.New(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	if token, err := loadSession(sessionPath); err == nil && token != "" {
		client.SetSessionToken(token)
	}

	return &cli{cfg: cfg, client: client, sessionPath: sessionPath, wait: wait}, nil
}

func (c *cli) dial(ctx context.Context) (session.LiveConn, error) {
	return websocket.Dial(ctx, c.cfg.SocketURL, c.client.Jar())
}

// open bootstraps a signed-in store with its live connection.
func (c *cli) open(ctx context.Context) (*session.Store, error) {
	store := session.NewStore(c.client, c.dial)
	if err := store.Bootstrap(ctx); err != nil {
		return nil, err
	}
	if !store.SignedIn() {
		return nil, fmt.Errorf("not signed in, run: syncd login <username>")
	}
	if store.Live() == nil {
		store.Close()
		return nil, fmt.Errorf("could not connect to %s", c.cfg.SocketURL)
	}
	return store, nil
}

func parseID(opts docopt.Opts, key string) (int64, error) {
	value, _ := opts.String(key)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s (%s)", key, value)
	}
	return id, nil
}

func (c *cli) login(ctx context.Context, opts docopt.Opts) error {
	username, _ := opts.String("<username>")
	password, _ := opts.String("--password")
	if password == "" {
		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Printf("\n")
		if err != nil {
			return err
		}
		password = string(passwordBytes)
	}

	user, err := c.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := saveSession(c.sessionPath, c.client.SessionToken()); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%d).\n", user.DisplayName(), user.ID)
	return nil
}

func (c *cli) logout(ctx context.Context, opts docopt.Opts) error {
	err := c.client.Logout(ctx)
	if removeErr := removeSession(c.sessionPath); removeErr != nil {
		glog.Warningf("[cli]remove session: %s", removeErr)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Signed out.\n")
	return nil
}

func (c *cli) whoami(ctx context.Context, opts docopt.Opts) error {
	user, err := c.client.Me(ctx)
	if err != nil {
		return err
	}
	printUser(user)
	if expiry, ok := c.client.SessionExpiry(); ok {
		fmt.Printf("Session expires %s.\n", expiry.Local().Format(time.RFC1123))
	}
	return nil
}

func (c *cli) friends(ctx context.Context, opts docopt.Opts) error {
	friends, err := c.client.MyFriends(ctx)
	if err != nil {
		return err
	}
	printFriends(friends)
	return nil
}

func (c *cli) profile(ctx context.Context, opts docopt.Opts) error {
	userID, err := parseID(opts, "<user_id>")
	if err != nil {
		return err
	}
	me, err := c.client.Me(ctx)
	if err != nil {
		return err
	}
	// reads only; no live connection is needed
	rel := reconcile.NewRelationship(me.ID, userID, nil, c.client)
	if err := rel.Load(ctx); err != nil {
		return err
	}
	printRelationship(rel.State())
	return nil
}

// friendAction runs one relationship transition against user_id and waits for the server
// to apply or reject it. Add goes through the profile's relationship; the other actions
// go through the store so the owned friends list changes with them.
func (c *cli) friendAction(action string) func(context.Context, docopt.Opts) error {
	return func(ctx context.Context, opts docopt.Opts) error {
		userID, err := parseID(opts, "<user_id>")
		if err != nil {
			return err
		}
		store, err := c.open(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		live := store.Live()
		viewerID := store.User().ID
		rel := reconcile.NewRelationship(viewerID, userID, live, c.client)
		defer rel.Attach()()
		if err := rel.Load(ctx); err != nil {
			return err
		}

		state := rel.State()
		if !rel.Allows(action) {
			glog.Warningf("[cli]%s ignored: status with %d is %s", action, userID, state.Status)
			printRelationship(state)
			return nil
		}

		answer := make(chan string, 1)
		offUpdate := live.On(websocket.EventFriendshipUpdate, func(data json.RawMessage) {
			var e websocket.FriendshipUpdate
			if json.Unmarshal(data, &e) != nil || !reconcile.ConcernsPair(&e, viewerID, userID) {
				return
			}
			select {
			case answer <- "":
			default:
			}
		})
		defer offUpdate()
		offError := live.On(websocket.EventFriendError, func(data json.RawMessage) {
			select {
			case answer <- friendErrorMessage(data):
			default:
			}
		})
		defer offError()

		switch action {
		case models.FriendActionCreate:
			err = rel.Add()
		case models.FriendActionAccept:
			user := models.UserResponse{ID: userID}
			if state.Profile != nil {
				user = *state.Profile
			}
			err = store.AcceptFriend(user, state.FriendshipID)
		case models.FriendActionDecline:
			err = store.DeclineFriend(userID)
		case models.FriendActionCancel:
			err = store.CancelFriendRequest(userID)
		case models.FriendActionRemove:
			err = store.Unfriend(userID)
		}
		if err != nil {
			return err
		}

		select {
		case rejected := <-answer:
			if rejected != "" {
				if err := rel.Load(ctx); err != nil {
					glog.Warningf("[cli]reload %d: %s", userID, err)
				}
				printRelationship(rel.State())
				return fmt.Errorf("rejected: %s", rejected)
			}
		case <-time.After(c.wait):
			glog.Warningf("[cli]no answer from server after %s", c.wait)
		case <-ctx.Done():
			return ctx.Err()
		}
		printRelationship(rel.State())
		return nil
	}
}

func (c *cli) business(ctx context.Context, opts docopt.Opts) error {
	businessID, err := parseID(opts, "<business_id>")
	if err != nil {
		return err
	}
	profile, err := c.client.Business(ctx, businessID)
	if err != nil {
		return err
	}
	printBusiness(profile.Business, reconcile.FollowState{
		BusinessID:     businessID,
		IsFollowing:    profile.IsFollowing,
		FollowersCount: profile.FollowersCount,
	})
	return nil
}

func (c *cli) followAction(following bool) func(context.Context, docopt.Opts) error {
	return func(ctx context.Context, opts docopt.Opts) error {
		businessID, err := parseID(opts, "<business_id>")
		if err != nil {
			return err
		}
		store, err := c.open(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		follow := reconcile.NewFollow(store.User().ID, store.Live(), c.client)
		defer follow.Close()
		if err := follow.SetBusiness(ctx, businessID); err != nil {
			return err
		}

		status := make(chan struct{}, 1)
		off := store.Live().On(websocket.EventFollowStatus, func(json.RawMessage) {
			select {
			case status <- struct{}{}:
			default:
			}
		})
		defer off()

		if following {
			err = follow.Follow()
		} else {
			err = follow.Unfollow()
		}
		if err != nil {
			return err
		}

		select {
		case <-status:
		case <-time.After(c.wait):
			glog.Warningf("[cli]no answer from server after %s", c.wait)
		case <-ctx.Done():
			return ctx.Err()
		}
		state := follow.State()
		if state.Business != nil {
			printBusiness(*state.Business, state)
		}
		return nil
	}
}

func (c *cli) invite(ctx context.Context, opts docopt.Opts) error {
	eventID, err := parseID(opts, "<event_id>")
	if err != nil {
		return err
	}
	userID, err := parseID(opts, "<user_id>")
	if err != nil {
		return err
	}
	store, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	inviteCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()
	if err := store.InviteToEvent(inviteCtx, eventID, userID); err != nil {
		return err
	}
	fmt.Printf("Invited %d to event %d.\n", userID, eventID)
	return nil
}

// watch prints friend list changes and friend requests until interrupted.
func (c *cli) watch(ctx context.Context, opts docopt.Opts) error {
	store, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Watching as %s. Ctrl-C to stop.\n", store.User().DisplayName())
	printFriends(store.Friends())
	store.FriendList().OnChange(printFriends)

	live := store.Live()
	offReceived := live.On(websocket.EventFriendRequestReceived, func(data json.RawMessage) {
		if notice, ok := friendNotice(data); ok {
			fmt.Printf("Friend request from %s (%d).\n", notice.OtherUser.DisplayName(), notice.OtherUser.ID)
		}
	})
	defer offReceived()
	offAccepted := live.On(websocket.EventFriendRequestAccepted, func(data json.RawMessage) {
		if notice, ok := friendNotice(data); ok {
			fmt.Printf("%s accepted your friend request.\n", notice.OtherUser.DisplayName())
		}
	})
	defer offAccepted()

	<-ctx.Done()
	return nil
}
