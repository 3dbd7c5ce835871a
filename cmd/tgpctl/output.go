package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

type printer struct {
	json bool
}

func (p *printer) one(v map[string]any, err error) {
	if err != nil {
		fatal(err)
	}
	output(v, p.json)
}

func (p *printer) many(items []any, err error) {
	if err != nil {
		fatal(err)
	}
	if p.json {
		outputJSON(items)
		return
	}
	if len(items) == 0 {
		fmt.Println("(none)")
		return
	}
	for i, it := range items {
		if i > 0 {
			fmt.Println()
		}
		printValue(it, 0)
	}
}

func output(v map[string]any, jsonOut bool) {
	if jsonOut {
		outputJSON(v)
		return
	}
	printValue(v, 0)
}

func printValue(v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(x)) {
			switch child := x[k].(type) {
			case map[string]any, []any:
				fmt.Printf("%s%s:\n", indent, k)
				printValue(child, depth+1)
			default:
				fmt.Printf("%s%s: %s\n", indent, k, scalar(child))
			}
		}
	case []any:
		for _, it := range x {
			if _, ok := it.(map[string]any); ok {
				fmt.Printf("%s-\n", indent)
				printValue(it, depth+1)
				continue
			}
			fmt.Printf("%s- %s\n", indent, scalar(it))
		}
	default:
		fmt.Printf("%s%s\n", indent, scalar(x))
	}
}

// scalar formats numbers decoded from protobuf Struct values without exponents.
func scalar(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
