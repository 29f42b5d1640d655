package main

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

type configLoader func() (*Config, error)

// =============================================================================
// Session Commands
// =============================================================================

// buildChatCmd creates the interactive "chat" command.
func buildChatCmd(load configLoader) *cobra.Command {
	var rooms []string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join rooms and chat interactively",
		Long: `Connects, joins the given rooms and reads messages from stdin.

Commands typed at the prompt:
  /room <id>      switch the room messages are sent to (joins it)
  /leave <id>     leave a room
  /upload <path>  upload a file into the current room
  /read           mark the current room as read
  /away, /back    set presence
  /quit           exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runChat(cmd, cfg, rooms)
		},
	}
	cmd.Flags().StringSliceVarP(&rooms, "room", "r", []string{"general"}, "Rooms to join; the first one receives messages")
	return cmd
}

// buildWatchCmd creates the "watch" command that only prints connection
// state, useful to observe reconnect behaviour against a flaky server.
func buildWatchCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Connect and print connection state changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runWatch(cmd, cfg)
		},
	}
}

// buildWhoamiCmd prints the identity the client would connect as.
func buildWhoamiCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the configured identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runWhoami(cmd, cfg)
		},
	}
}

// =============================================================================
// REST Commands
// =============================================================================

// buildRoomsCmd creates the "rooms" command group.
func buildRoomsCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Manage rooms",
	}
	cmd.AddCommand(
		buildRoomsListCmd(load),
		buildRoomsCreateCmd(load),
		buildRoomsRenameCmd(load),
		buildRoomsDeleteCmd(load),
	)
	return cmd
}

func buildRoomsListCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accessible rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRoomsList(cmd, cfg)
		},
	}
}

func buildRoomsCreateCmd(load configLoader) *cobra.Command {
	var (
		roomType     string
		participants []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRoomsCreate(cmd, cfg, args[0], livechat.RoomType(roomType), participants)
		},
	}
	cmd.Flags().StringVar(&roomType, "type", string(livechat.RoomTypePublic), "Room type: public, private or direct")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "Participant user IDs")
	return cmd
}

func buildRoomsRenameCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <room-id> <name>",
		Short: "Rename a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRoomsRename(cmd, cfg, args[0], args[1])
		},
	}
}

func buildRoomsDeleteCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <room-id>",
		Short: "Delete a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRoomsDelete(cmd, cfg, args[0])
		},
	}
}

// buildHistoryCmd prints a page of room history.
func buildHistoryCmd(load configLoader) *cobra.Command {
	var (
		limit  int
		before string
	)
	cmd := &cobra.Command{
		Use:   "history <room-id>",
		Short: "Show message history for a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runHistory(cmd, cfg, args[0], limit, before)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max number of messages to return")
	cmd.Flags().StringVar(&before, "before", "", "Return messages older than this message ID")
	return cmd
}

// buildUploadCmd uploads a file without sending a message.
func buildUploadCmd(load configLoader) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runUpload(cmd, cfg, args[0], contentType)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type (detected from the extension when empty)")
	return cmd
}
