package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"mystiko/repositories"
)

// printBanner displays the startup header and a small stats table, so an
// operator sees at a glance what the server is about to serve.
func printBanner(config Config, accounts repositories.IAccountRepository, rooms repositories.IRoomRepository) {
	color.Cyan.Println("Mystiko Chat Server")
	color.Gray.Println("Multi-Room Chat with BadgerDB Persistent Storage")

	userCount, err := accounts.AccountCount()
	if err != nil {
		userCount = -1
	}
	roomCount, err := rooms.RoomCount()
	if err != nil {
		roomCount = -1
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Setting", "Value"})
	table.Append([]string{"Address", fmt.Sprintf("%s:%d", config.Host, config.Port)})
	table.Append([]string{"Database", config.BadgerFilepath + " (BadgerDB)"})
	table.Append([]string{"Registered Users", fmt.Sprintf("%d", userCount)})
	table.Append([]string{"Total Rooms", fmt.Sprintf("%d", roomCount)})
	table.Append([]string{"Chat History", fmt.Sprintf("Last %d messages per room", config.HistoryLimit)})
	table.Render()
}
