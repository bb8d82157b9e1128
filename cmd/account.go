package cmd

import (
	"time"

	"github.com/habedi/gymctl/auth"
	"github.com/habedi/gymctl/pkg/clierr"
	"github.com/habedi/gymctl/pkg/validation"
	"github.com/spf13/cobra"
)

// validationErr wraps a validation failure for the exit-code mapping.
func validationErr(err error) error {
	if err == nil {
		return nil
	}
	return clierr.New(clierr.Validation, err.Error(), err)
}

func signupCmd(st *cliState) *cobra.Command {
	var name, email string
	var login bool

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if name, err = p.inputOr(name, "Name: "); err != nil {
				return err
			}
			if err := validationErr(validation.ValidateNonEmptyString("name", name)); err != nil {
				return err
			}
			if email, err = p.inputOr(email, "E-mail: "); err != nil {
				return err
			}
			if err := validationErr(validation.ValidateEmail(email)); err != nil {
				return err
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}
			if err := validationErr(validation.ValidatePassword(password)); err != nil {
				return err
			}
			confirmation, err := p.password("Confirm password: ")
			if err != nil {
				return err
			}
			if err := validationErr(validation.ValidatePasswordConfirmation(password, confirmation)); err != nil {
				return err
			}

			a, err := st.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.session.SignUp(cmd.Context(), name, email, password); err != nil {
				return err
			}
			cmd.Printf("Account created for %s.\n", email)
			if !login {
				cmd.Println("Run 'gymctl login' to sign in.")
				return nil
			}
			if err := a.session.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			cmd.Printf("Signed in as %s.\n", a.session.User().Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Your name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Your e-mail address")
	cmd.Flags().BoolVarP(&login, "login", "l", false, "Sign in after the account is created")
	return cmd
}

func loginCmd(st *cliState) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the gym API",
		Long:  "Sign in with your e-mail and password. The session is stored locally and renewed automatically.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if email, err = p.inputOr(email, "E-mail: "); err != nil {
				return err
			}
			if err := validationErr(validation.ValidateEmail(email)); err != nil {
				return err
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}
			if err := validationErr(validation.ValidateNonEmptyString("password", password)); err != nil {
				return err
			}

			a, err := st.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.session.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			u := a.session.User()
			cmd.Printf("Signed in as %s (%s).\n", u.Name, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Your e-mail address")
	return cmd
}

func logoutCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.load(cmd.Context())
			if err != nil {
				return err
			}
			if !a.session.IsSignedIn() {
				cmd.Println("Not signed in.")
				return nil
			}
			if err := a.session.SignOut(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out.")
			return nil
		},
	}
}

func statusCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.load(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println("Server:", a.cfg.Server.URL)
			if !a.session.IsSignedIn() {
				cmd.Println("Not signed in.")
				return nil
			}
			u := a.session.User()
			cmd.Printf("User: %s (%s)\n", u.Name, u.Email)

			pair, err := a.session.Tokens(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println("Access token:", describeToken(pair))
			return nil
		},
	}
}

func describeToken(pair auth.TokenPair) string {
	tok := pair.OAuth2()
	exp, hasExp := auth.AccessTokenExpiry(pair.AccessToken)
	switch {
	case pair.Empty():
		return "missing"
	case pair.AccessToken == "":
		return "missing (refresh token only)"
	case !hasExp:
		return "present (no expiry)"
	case tok.Valid():
		return "valid until " + exp.Local().Format(time.DateTime)
	default:
		return "expired at " + exp.Local().Format(time.DateTime) + "; it is renewed on the next request"
	}
}
