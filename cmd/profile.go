package cmd

import (
	"fmt"
	"os"

	"github.com/habedi/gymctl/gym"
	"github.com/habedi/gymctl/pkg/validation"
	"github.com/spf13/cobra"
)

func profileCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			u := a.session.User()
			cmd.Println("Name:", u.Name)
			cmd.Println("E-mail:", u.Email)
			if u.Avatar != "" {
				cmd.Println("Avatar:", a.gym.AvatarURL(u.Avatar))
			}
			return nil
		},
	}

	cmd.AddCommand(
		profileUpdateCmd(st),
		profileAvatarCmd(st),
	)
	return cmd
}

func profileUpdateCmd(st *cliState) *cobra.Command {
	var name string
	var changePassword bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			user := a.session.User()
			if name == "" {
				name = user.Name
			}

			update := gym.ProfileUpdate{Name: name}
			var confirmation string
			if changePassword {
				p := newPrompter(cmd)
				if update.OldPassword, err = p.password("Current password: "); err != nil {
					return err
				}
				if update.Password, err = p.password("New password: "); err != nil {
					return err
				}
				if confirmation, err = p.password("Confirm new password: "); err != nil {
					return err
				}
			}
			if err := validationErr(validation.ValidateProfileUpdate(update.Name, update.Password, confirmation, update.OldPassword)); err != nil {
				return err
			}

			if err := a.gym.UpdateProfile(cmd.Context(), update); err != nil {
				return err
			}
			user.Name = update.Name
			if err := a.session.UpdateUserProfile(cmd.Context(), user); err != nil {
				return err
			}
			cmd.Println("Profile updated.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New display name")
	cmd.Flags().BoolVarP(&changePassword, "password", "p", false, "Change the password (prompts for the current and new one)")
	return cmd
}

func profileAvatarCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <file>",
		Short: "Upload a new profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return validationErr(fmt.Errorf("cannot read avatar file: %w", err))
			}
			if info.IsDir() {
				return validationErr(fmt.Errorf("%s is a directory", path))
			}
			if err := validationErr(validation.ValidateAvatarSize(info.Size())); err != nil {
				return err
			}
			if _, _, err := gym.AvatarFileName("", path); err != nil {
				return validationErr(err)
			}

			a, err := st.loadSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read avatar file: %w", err)
			}
			user := a.session.User()
			avatar, err := a.gym.UploadAvatar(cmd.Context(), user.Name, path, content)
			if err != nil {
				return err
			}
			user.Avatar = avatar
			if err := a.session.UpdateUserProfile(cmd.Context(), user); err != nil {
				return err
			}
			cmd.Println("Avatar updated:", a.gym.AvatarURL(avatar))
			return nil
		},
	}
}
