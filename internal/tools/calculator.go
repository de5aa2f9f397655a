package tools

import (
	"context"
	"fmt"
	"strconv"
)

// CalculatorTool performs basic arithmetic on two numbers
func CalculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Title:       "Calculator",
		Description: "Perform basic arithmetic: addition, subtraction, multiplication or division of two numbers.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"addition", "subtraction", "multiplication", "division"},
					"description": "The arithmetic operation to perform",
				},
				"number1": map[string]interface{}{
					"type":        "number",
					"description": "The first operand",
				},
				"number2": map[string]interface{}{
					"type":        "number",
					"description": "The second operand",
				},
			},
			"required": []string{"operation", "number1", "number2"},
		},
		Execute: func(_ context.Context, input map[string]interface{}) (string, error) {
			op, _ := input["operation"].(string)
			a, ok1 := toFloat(input["number1"])
			b, ok2 := toFloat(input["number2"])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("number1 and number2 must be numbers")
			}

			var result float64
			switch op {
			case "addition":
				result = a + b
			case "subtraction":
				result = a - b
			case "multiplication":
				result = a * b
			case "division":
				if b == 0 {
					return "", fmt.Errorf("division by zero")
				}
				result = a / b
			default:
				return "", fmt.Errorf("unsupported operation: %s", op)
			}
			return strconv.FormatFloat(result, 'f', -1, 64), nil
		},
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
