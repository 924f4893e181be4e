package cli

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hitoshi/roomfinder/internal/model"
)

// ガードのルート。CLIのコマンドは画面と同じ判定を受ける。
const (
	routeRoomDetail = "/room/"
	routeAddRoom    = "/add-room"
	routeMyRooms    = "/my-rooms"
	routeEditRoom   = "/edit-room/"
)

func newRoomsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Browse and manage room listings",
	}
	cmd.AddCommand(
		newRoomsListCommand(app),
		newRoomsShowCommand(app),
		newRoomsMineCommand(app),
		newRoomsAddCommand(app),
		newRoomsEditCommand(app),
		newRoomsDeleteCommand(app),
	)
	return cmd
}

func newRoomsListCommand(app *App) *cobra.Command {
	var (
		filter             model.RoomFilter
		minPrice, maxPrice int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search room listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-price") {
				filter.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max-price") {
				filter.MaxPrice = &maxPrice
			}

			rooms, err := app.Client().ListRooms(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list rooms: %w", err)
			}
			return renderRooms(rooms)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Location, "location", "", "location contains")
	flags.IntVar(&minPrice, "min-price", 0, "minimum monthly price")
	flags.IntVar(&maxPrice, "max-price", 0, "maximum monthly price")
	flags.StringVar(&filter.Type, "type", "", "room type, e.g. \"1 BHK\"")
	flags.StringVar(&filter.Preference, "preference", "", "tenant preference, e.g. Family")
	flags.StringVar(&filter.OwnerID, "owner", "", "owner user ID")
	flags.IntVar(&filter.Limit, "limit", 0, "maximum number of results")
	return cmd
}

func newRoomsShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a room listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Authorize(cmd.Context(), routeRoomDetail+args[0]); err != nil {
				return err
			}
			room, err := app.Client().GetRoom(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get room: %w", err)
			}
			renderRoom(room)
			return nil
		},
	}
}

func newRoomsMineCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the rooms you have listed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Authorize(cmd.Context(), routeMyRooms); err != nil {
				return err
			}
			token, err := app.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			rooms, err := app.Client().MyRooms(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("failed to list your rooms: %w", err)
			}
			return renderRooms(rooms)
		},
	}
}

// roomFlags は部屋の作成・更新で共通のフラグ。
type roomFlags struct {
	input model.RoomInput
}

func (f *roomFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.input.Title, "title", "", "listing title")
	flags.StringVar(&f.input.Location, "location", "", "location")
	flags.IntVar(&f.input.Price, "price", 0, "monthly price")
	flags.StringVar(&f.input.Type, "type", "", "room type, e.g. \"1 BHK\"")
	flags.StringVar(&f.input.Preference, "preference", "", "tenant preference, e.g. Family")
	flags.StringVar(&f.input.Contact, "contact", "", "contact phone or email")
	flags.StringVar(&f.input.ImageURL, "image-url", "", "public image URL")
}

// mergeInto は指定されたフラグだけを既存の値に上書きする。
func (f *roomFlags) mergeInto(flags *pflag.FlagSet, room *model.Room) model.RoomInput {
	in := model.RoomInput{
		Title:      room.Title,
		Location:   room.Location,
		Price:      room.Price,
		Type:       room.Type,
		Preference: room.Preference,
		Contact:    room.Contact,
		ImageURL:   room.ImageURL,
	}
	flags.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "title":
			in.Title = f.input.Title
		case "location":
			in.Location = f.input.Location
		case "price":
			in.Price = f.input.Price
		case "type":
			in.Type = f.input.Type
		case "preference":
			in.Preference = f.input.Preference
		case "contact":
			in.Contact = f.input.Contact
		case "image-url":
			in.ImageURL = f.input.ImageURL
		}
	})
	return in
}

func newRoomsAddCommand(app *App) *cobra.Command {
	var rf roomFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "List a new room (room owners only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Authorize(cmd.Context(), routeAddRoom); err != nil {
				return err
			}
			token, err := app.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			room, err := app.Client().CreateRoom(cmd.Context(), token, rf.input)
			if err != nil {
				return fmt.Errorf("failed to add room: %w", err)
			}
			pterm.Success.Printf("Room %s listed\n", room.ID)
			renderRoom(room)
			return nil
		},
	}

	rf.register(cmd.Flags())
	for _, name := range []string{"title", "location", "price", "type", "preference", "contact"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRoomsEditCommand(app *App) *cobra.Command {
	var rf roomFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update one of your rooms (room owners only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := app.Authorize(cmd.Context(), routeEditRoom+id); err != nil {
				return err
			}
			token, err := app.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			current, err := app.Client().GetRoom(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get room: %w", err)
			}
			room, err := app.Client().UpdateRoom(cmd.Context(), token, id, rf.mergeInto(cmd.Flags(), current))
			if err != nil {
				return fmt.Errorf("failed to update room: %w", err)
			}
			pterm.Success.Printf("Room %s updated\n", room.ID)
			renderRoom(room)
			return nil
		},
	}

	rf.register(cmd.Flags())
	return cmd
}

func newRoomsDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove one of your rooms (room owners only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := app.Authorize(cmd.Context(), routeEditRoom+id); err != nil {
				return err
			}
			token, err := app.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Client().DeleteRoom(cmd.Context(), token, id); err != nil {
				return fmt.Errorf("failed to delete room: %w", err)
			}
			pterm.Success.Printf("Room %s deleted\n", id)
			return nil
		},
	}
}

func renderRooms(rooms []*model.Room) error {
	if len(rooms) == 0 {
		pterm.Info.Println("No rooms found")
		return nil
	}

	data := pterm.TableData{{"ID", "TITLE", "LOCATION", "PRICE", "TYPE", "PREFERENCE"}}
	for _, r := range rooms {
		data = append(data, []string{r.ID, r.Title, r.Location, strconv.Itoa(r.Price), r.Type, r.Preference})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderRoom(r *model.Room) {
	pterm.DefaultSection.Println(r.Title)
	pterm.Info.Printf("ID:         %s\n", r.ID)
	pterm.Info.Printf("Location:   %s\n", r.Location)
	pterm.Info.Printf("Price:      %d\n", r.Price)
	pterm.Info.Printf("Type:       %s\n", r.Type)
	pterm.Info.Printf("Preference: %s\n", r.Preference)
	pterm.Info.Printf("Contact:    %s\n", r.Contact)
	if r.ImageURL != "" {
		pterm.Info.Printf("Image:      %s\n", r.ImageURL)
	}
}
