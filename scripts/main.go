package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/medbill/ledger/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "redistribute",
		Description: "Re-run payment distribution on every open invoice of a patient",
		Run:         internal.RedistributePatientInvoices,
	},
	{
		Name:        "clearance",
		Description: "Print the billing clearance of a patient or deceased",
		Run:         internal.PrintClearance,
	},
	{
		Name:        "print-schema",
		Description: "Print the statements of the embedded schema",
		Run:         internal.PrintSchema,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		patientID    string
		deceasedID   string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&patientID, "patient-id", "", "Patient ID for invoice operations")
	flag.StringVar(&deceasedID, "deceased-id", "", "Deceased ID for invoice operations")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	if patientID != "" {
		os.Setenv("PATIENT_ID", patientID)
	}
	if deceasedID != "" {
		os.Setenv("DECEASED_ID", deceasedID)
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
