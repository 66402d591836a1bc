package infrastructure

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"orderflow/internal/service/notification/domain"
)

// CELFilter 用一条 CEL 表达式决定渠道是否接收通知。
// 表达式可见的变量: event_type, order_id, data (原始事件载荷)。
// 例如只给 Slack 推失败单: `event_type == "OrderRejected"`，
// 或只推大额订单: `double(data.total_amount) > 1000.0`。
type CELFilter struct {
	program cel.Program
}

func NewCELFilter(expression string) (*CELFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("order_id", cel.StringType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile filter %q", expression)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.Errorf("filter %q must evaluate to bool", expression)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELFilter{program: program}, nil
}

func (f *CELFilter) Match(n domain.Notification) (bool, error) {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	out, _, err := f.program.Eval(map[string]any{
		"event_type": n.EventType,
		"order_id":   n.OrderID,
		"data":       data,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate filter")
	}
	match, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("filter did not return bool")
	}
	return match, nil
}
