// Command callctl drives the call API from a terminal: it issues development
// tokens and starts, joins, ends and watches calls as a doctor or patient.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telehealth-calls/internal/auth"
	"telehealth-calls/internal/callclient"
	"telehealth-calls/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "token":
		return runToken(rest, out)
	case "status", "history", "start", "join", "end", "watch":
		return runCall(ctx, cmd, rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	issuer := fs.String("issuer", os.Getenv("JWT_ISSUER"), "JWT issuer")
	audience := fs.String("audience", os.Getenv("JWT_AUDIENCE"), "JWT audience")
	user := fs.Int64("user", 0, "doctor or patient id")
	role := fs.String("role", "", "doctor, patient or admin")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user <= 0 || *role == "" {
		return errors.New("user and role are required")
	}

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:      *secret,
		JWTIssuer:      *issuer,
		JWTAudience:    *audience,
		AccessTokenTTL: *ttl,
	})
	if err != nil {
		return err
	}
	tok, err := m.Issue(time.Now(), *user, *role)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}

func runCall(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	api := fs.String("api", envOr("CALLCTL_API", "http://localhost:8080"), "API base url")
	token := fs.String("token", os.Getenv("CALLCTL_TOKEN"), "bearer token")
	role := fs.String("role", os.Getenv("CALLCTL_ROLE"), "doctor or patient")
	user := fs.Int64("user", 0, "your doctor or patient id")
	appt := fs.Int64("appointment", 0, "appointment id")
	callID := fs.Int64("call", 0, "call id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := callclient.NewClient(*api, callclient.Session{Token: *token, Role: strings.ToLower(*role), ID: *user}, nil)
	if err != nil {
		return err
	}

	switch cmd {
	case "status":
		if *appt <= 0 {
			return errors.New("appointment is required")
		}
		st, err := client.CallStatus(ctx, *appt)
		if err != nil {
			return err
		}
		if !st.Active {
			fmt.Fprintln(out, "no active call")
			return nil
		}
		return printJSON(out, st.Call)
	case "history":
		if *appt <= 0 {
			return errors.New("appointment is required")
		}
		list, err := client.History(ctx, *appt)
		if err != nil {
			return err
		}
		return printJSON(out, list)
	case "start":
		if *appt <= 0 {
			return errors.New("appointment is required")
		}
		call, err := client.CreateRoom(ctx, *appt)
		if err != nil {
			if call.CallID != 0 {
				_ = printJSON(out, call)
			}
			return err
		}
		return printJSON(out, call)
	case "join", "end":
		if *callID <= 0 {
			return errors.New("call is required")
		}
		op := client.Join
		if cmd == "end" {
			op = client.End
		}
		call, err := op(ctx, *callID)
		if err != nil {
			return err
		}
		return printJSON(out, call)
	case "watch":
		if *appt <= 0 {
			return errors.New("appointment is required")
		}
		p := callclient.NewPoller(client, client.Session(), *appt, func(v callclient.View) {
			fmt.Fprintln(out, formatView(v))
		})
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return nil
}

func formatView(v callclient.View) string {
	var b strings.Builder
	b.WriteString(v.At.Format(time.TimeOnly))
	if v.Active && v.Call != nil {
		fmt.Fprintf(&b, " call=%d status=%s doctor_joined=%t patient_joined=%t room=%s",
			v.Call.CallID, v.Call.Status, v.Call.DoctorJoined, v.Call.PatientJoined, v.Call.RoomURL)
	} else {
		b.WriteString(" no active call")
	}
	var can []string
	if v.Affordances.CanStart {
		can = append(can, "start")
	}
	if v.Affordances.CanJoin {
		can = append(can, "join")
	}
	if v.Affordances.CanEnd {
		can = append(can, "end")
	}
	if len(can) > 0 {
		b.WriteString(" can=" + strings.Join(can, ","))
	}
	if v.Err != nil {
		b.WriteString(" (stale: " + v.Err.Error() + ")")
	}
	return b.String()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: callctl <command> [flags]")
	fmt.Fprintln(out, "\nCommands:")
	fmt.Fprintln(out, "  token    issue an access token: -secret -user -role [-ttl]")
	fmt.Fprintln(out, "  status   show the active call: -appointment")
	fmt.Fprintln(out, "  history  list calls for an appointment: -appointment")
	fmt.Fprintln(out, "  start    start a call as the doctor: -appointment")
	fmt.Fprintln(out, "  join     join a call as the patient: -call")
	fmt.Fprintln(out, "  end      end a call: -call")
	fmt.Fprintln(out, "  watch    poll call status every 5s: -appointment")
	fmt.Fprintln(out, "\nCall commands also take -api -token -role -user (or CALLCTL_API, CALLCTL_TOKEN, CALLCTL_ROLE).")
}
