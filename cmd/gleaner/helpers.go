package main

import (
	"fmt"
	"strconv"
	"strings"

	"gleaner/internal/catalog"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseStatuses(names []string) ([]catalog.Status, error) {
	statuses := make([]catalog.Status, 0, len(names))
	for _, name := range names {
		status, ok := catalog.ParseStatus(name)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", name)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseItemTypes(names []string) ([]catalog.ItemType, error) {
	types := make([]catalog.ItemType, 0, len(names))
	for _, name := range names {
		itemType, ok := catalog.ParseItemType(name)
		if !ok {
			return nil, fmt.Errorf("unknown item type %q", name)
		}
		types = append(types, itemType)
	}
	return types, nil
}
