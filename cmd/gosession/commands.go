package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var (
		password      string
		passwordStdin bool
		otp           string
	)

	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Log in with a username and password",
		Long: `Log in with a username and password.

When the account has two-factor authentication enabled, pass the code with --otp or
run "gosession verify" afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			res, err := o.Login(cmd.Context(), args[0], password)
			if err != nil {
				printState(cmd.OutOrStdout(), o.State())
				return err
			}
			if res.TwoFactorRequired && otp != "" {
				if err := o.VerifyTwoFactor(cmd.Context(), args[0], otp); err != nil {
					printState(cmd.OutOrStdout(), o.State())
					return err
				}
			}
			printState(cmd.OutOrStdout(), o.State())
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&otp, "otp", "", "verification code for two-factor accounts")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func newVerifyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify EMAIL CODE",
		Short: "Complete a two-factor login",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			err = o.VerifyTwoFactor(cmd.Context(), args[0], args[1])
			printState(cmd.OutOrStdout(), o.State())
			return err
		},
	}
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	var (
		asJSON bool
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the restored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			if check {
				if err := o.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("token store: %w", err)
				}
				if !asJSON {
					okColor.Fprintln(cmd.OutOrStdout(), "token store reachable")
				}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(o.State())
			}
			printState(cmd.OutOrStdout(), o.State())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the state as JSON")
	cmd.Flags().BoolVar(&check, "check", false, "fail unless the token store is reachable")
	return cmd
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			o.Logout(cmd.Context())
			printState(cmd.OutOrStdout(), o.State())
			return nil
		},
	}
}

func newRefreshCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the token pair now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			if err := o.Refresh(cmd.Context()); err != nil {
				printState(cmd.OutOrStdout(), o.State())
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "tokens refreshed")
			return nil
		},
	}
}

func newRequestCmd(opts *cliOptions) *cobra.Command {
	var (
		method    string
		data      string
		headers   []string
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "request PATH",
		Short: "Send an authenticated request",
		Long: `Send an authenticated request and print the JSON response.

PATH is resolved against the backend base URL unless it is absolute. An expired access
token is refreshed once and the request retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := goSession.RequestOptions{
				Method: strings.ToUpper(method),
				Header: http.Header{},
			}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("header %q must be NAME: VALUE", h)
				}
				req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
			if data != "" {
				req.Body = []byte(data)
				if req.Header.Get("Content-Type") == "" {
					req.Header.Set("Content-Type", "application/json")
				}
			}

			o, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer o.Close()

			ctx := cmd.Context()
			if requestID != "" {
				ctx = goSession.WithRequestID(ctx, requestID)
			}

			var out json.RawMessage
			if err := o.MakeAuthenticatedRequest(ctx, args[0], req, &out); err != nil {
				return err
			}
			if len(out) == 0 {
				dimColor.Fprintln(cmd.OutOrStdout(), "(empty response)")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header, NAME: VALUE")
	cmd.Flags().StringVar(&requestID, "request-id", "", "X-Request-ID to send")
	return cmd
}
