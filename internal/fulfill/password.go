package fulfill

// DerivePassword 计算交付压缩包密码
//
// 密码 = 订单 id + 买家邮箱的固定长度后缀。同一订单重试时密码保持
// 不变，无需单独持久化。
func DerivePassword(orderID, buyerEmail string, suffixLen int) string {
	if suffixLen <= 0 {
		return orderID
	}
	suffix := buyerEmail
	if len(suffix) > suffixLen {
		suffix = suffix[len(suffix)-suffixLen:]
	}
	return orderID + suffix
}
