package model

import "gopkg.in/guregu/null.v3"

type Task struct {
	ID               ID          `json:"id"`
	Title            string      `json:"title"`
	NumberOfDatasets int         `json:"number_of_datasets"`
	CreatedAt        null.String `json:"created_at"`
	UpdatedAt        null.String `json:"updated_at"`
}

type TabDefinition struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Template string `json:"template"`
}

type ModuleInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Backend string `json:"backend"`
}
