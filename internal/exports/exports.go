package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row 订单导出表中的一行
type Row struct {
	OrderID    string
	Product    string // 原始产品名，可能带 " - " 之后的营销后缀
	Size       string
	BuyerEmail string
	BuyerName  string
}

// LogicalOrder 逻辑订单：同一订单 id 的行分组
type LogicalOrder struct {
	ID         string
	Items      []Row
	BuyerEmail string // 取自首行；同一订单各行买家一致（依约定，不强制校验）
	BuyerName  string
}

// 表头别名（统一转小写、去空格后匹配）
var (
	orderIDHeaders = []string{"order id", "order_id", "order number", "order"}
	productHeaders = []string{"product", "product name", "item name", "item"}
	sizeHeaders    = []string{"size", "variation", "variant"}
	emailHeaders   = []string{"email", "buyer email", "customer email"}
	nameHeaders    = []string{"name", "buyer name", "customer name"}
)

// ParseResult 解析结果
type ParseResult struct {
	Rows    []Row
	Skipped int // 缺少订单 id 或产品名而被跳过的行数
}

// ParseRows 解析带表头的 CSV 导出文件
//
// 缺少订单 id 或产品名的行被跳过计数，不中断整个文件的解析。
func ParseRows(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // 导出工具偶尔产生列数不齐的行
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("export file is empty")
		}
		return nil, fmt.Errorf("read csv header failed: %w", err)
	}

	cols := mapColumns(header)
	if cols.orderID < 0 {
		return nil, fmt.Errorf("export file has no order id column, header: %v", header)
	}
	if cols.product < 0 {
		return nil, fmt.Errorf("export file has no product column, header: %v", header)
	}

	result := &ParseResult{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row failed: %w", err)
		}

		row := Row{
			OrderID:    field(record, cols.orderID),
			Product:    field(record, cols.product),
			Size:       field(record, cols.size),
			BuyerEmail: field(record, cols.email),
			BuyerName:  field(record, cols.name),
		}

		// 缺少关键字段的行跳过，不中断整个文件
		if row.OrderID == "" || row.Product == "" {
			result.Skipped++
			continue
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// Group 将行按订单 id 分组为逻辑订单
//
// 分组对插入顺序稳定：返回顺序即各订单 id 首次出现的顺序。
func Group(rows []Row) []*LogicalOrder {
	index := make(map[string]*LogicalOrder)
	var orders []*LogicalOrder

	for _, row := range rows {
		order, ok := index[row.OrderID]
		if !ok {
			order = &LogicalOrder{
				ID:         row.OrderID,
				BuyerEmail: row.BuyerEmail,
				BuyerName:  row.BuyerName,
			}
			index[row.OrderID] = order
			orders = append(orders, order)
		}
		order.Items = append(order.Items, row)
	}

	return orders
}

type columns struct {
	orderID int
	product int
	size    int
	email   int
	name    int
}

func mapColumns(header []string) columns {
	cols := columns{orderID: -1, product: -1, size: -1, email: -1, name: -1}
	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.orderID < 0 && matches(normalized, orderIDHeaders):
			cols.orderID = i
		case cols.product < 0 && matches(normalized, productHeaders):
			cols.product = i
		case cols.size < 0 && matches(normalized, sizeHeaders):
			cols.size = i
		case cols.email < 0 && matches(normalized, emailHeaders):
			cols.email = i
		case cols.name < 0 && matches(normalized, nameHeaders):
			cols.name = i
		}
	}
	return cols
}

func matches(header string, aliases []string) bool {
	for _, a := range aliases {
		if header == a {
			return true
		}
	}
	return false
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
