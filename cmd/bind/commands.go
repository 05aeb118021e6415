package bind

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	newCmd = &cobra.Command{
		Use:   "new [userId] [gcmId]",
		Short: "Binds a channel id to a user, the binding stays pending until verified",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := bindClient.New(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
	verifyCmd = &cobra.Command{
		Use:   "verify [userId] [gcmId] [code]",
		Short: "Confirms a pending binding with the code that was sent to the device",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := bindClient.Verify(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [userId] [oldGcmId] [newGcmId]",
		Short: "Moves a verified binding to a new channel id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := bindClient.Update(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [userId] [gcmId]",
		Short: "Removes a binding of the user (no-op if there is none)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindClient.Delete(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [userId...]",
		Short: "Prints the given users that have at least one binding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userIDs, err := bindClient.Query(args)
			if err != nil {
				return err
			}
			if len(userIDs) == 0 {
				fmt.Println("no user has a binding")
				return nil
			}
			fmt.Println(strings.Join(userIDs, "\n"))
			return nil
		},
	}
)
