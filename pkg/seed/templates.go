package seed

// Template is one seedable canned reply with the bilingual trigger phrases
// that make it retrievable. Chinese triggers are pre-segmented into short
// common words to raise full-text hit rates.
type Template struct {
	Key       string
	TriggerZH string
	TriggerFR string
	AnswerZH  string
	AnswerFR  string
}

// Templates returns the built-in reply templates, in import order.
func Templates() []Template {
	return []Template{
		{
			Key:       "withdraw_conditions",
			TriggerZH: "提现 条件 要求 满足",
			TriggerFR: "retrait condition exigences",
			AnswerZH:  "提现是有条件的，请仔细查看页面文字，会有详细的描述",
			AnswerFR:  "Le retrait est conditionnel. Veuillez lire attentivement la page pour une description détaillée.",
		},
		{
			Key:       "provide_game_account",
			TriggerZH: "游戏 账号 查询 提供",
			TriggerFR: "compte de jeu verifier fournir",
			AnswerZH:  "请提供你的游戏账号，我帮你查一下",
			AnswerFR:  "Veuillez fournir votre compte de jeu et je le vérifierai pour vous.",
		},
		{
			Key:       "register_before_login",
			TriggerZH: "注册 成功 后 才能 登录",
			TriggerFR: "inscription avant connexion",
			AnswerZH:  "请先注册成功后，才能登录",
			AnswerFR:  "Veuillez vous inscrire avec succès avant de vous connecter",
		},
		{
			Key:       "register_operator_phone",
			TriggerZH: "运营商号 电话 注册",
			TriggerFR: "numero operateur telephone inscription",
			AnswerZH:  "请用运营商号+电话号来注册",
			AnswerFR:  "Veuillez vous inscrire avec votre numéro d'opérateur + numéro de téléphone",
		},
		{
			Key:       "payment_unstable_try_more",
			TriggerZH: "支付 渠道 不稳定 多次 尝试 充值",
			TriggerFR: "paiement canal instable essayer plusieurs fois",
			AnswerZH:  "由于支付渠道不稳定，请多次尝试",
			AnswerFR:  "Étant donné que le canal de paiement est instable, veuillez essayer plusieurs fois",
		},
		{
			Key:       "have_fun",
			TriggerZH: "玩得 愉快 欢迎",
			TriggerFR: "amusez-vous bon jeu",
			AnswerZH:  "祝你玩的愉快",
			AnswerFR:  "Amusez-vous!",
		},
		{
			Key:       "find_in_withdraw_ui",
			TriggerZH: "提现 界面 找到 在哪 哪里",
			TriggerFR: "trouver interface de retrait ou",
			AnswerZH:  "在提现界面中可以找到",
			AnswerFR:  "Vous pouvez le trouver dans l'interface de retrait",
		},
		{
			Key:       "check_withdraw_conditions",
			TriggerZH: "检查 满足 提现 条件 限制",
			TriggerFR: "verifier conditions de retrait",
			AnswerZH:  "请检查是否满足提现条件",
			AnswerFR:  "Veuillez vérifier si vous remplissez les conditions de retrait",
		},
		{
			Key:       "check_deposit_ui",
			TriggerZH: "查看 充值 界面 内容",
			TriggerFR: "verifier interface de recharge",
			AnswerZH:  "请查看充值界面的内容",
			AnswerFR:  "Veuillez vérifier le contenu de l'interface de recharge",
		},
		{
			Key:       "feedback_to_operator",
			TriggerZH: "反馈 运营 通知",
			TriggerFR: "signaler a l'operateur informer",
			AnswerZH:  "好的，我已经反馈给运营者了，他们有回复后，我会通知你的",
			AnswerFR:  "OK, j'ai signalé cela à l'opérateur, je vous ferai savoir quand il répondra.",
		},
		{
			Key:       "apology_local_payment_unstable",
			TriggerZH: "本地 支付 环境 不稳定 充值 提现 道歉 改善",
			TriggerFR: "environnement paiement instable recharges retraits desoles ameliorer",
			AnswerZH:  "由于本地支付环境的问题导致充值和提现都不稳定，给玩家们造成了不必要的困扰，我们深感抱歉，我们已经积极的在和支付通道沟通，后期会有所改善的",
			AnswerFR:  "En raison de problèmes liés à l'environnement de paiement local, les recharges et les retraits sont instables, ce qui a causé des problèmes inutiles aux joueurs. Nous en sommes profondément désolés. Nous avons activement communiqué avec le canal de paiement et nous améliorerons la situation ultérieurement.",
		},
		{
			Key:       "apology_operator_network_issue",
			TriggerZH: "运营商 网络 问题 充值 提现 无法",
			TriggerFR: "reseau operateur probleme recharges retraits",
			AnswerZH:  "我们对目前的情况深表歉意。目前，运营商网络出现问题，导致充值或提现无法进行。感谢您的耐心等待；支付服务恢复后，您将可以再次进行充值或提现。",
			AnswerFR:  "Nous vous présentons nos sincères excuses pour la situation actuelle. Actuellement, il y a un problème de réseau du côté de l'opérateur, ce qui empêche de procéder à des recharges ou des retraits. Merci de votre patience ; dès que le service de paiement sera rétabli, vous pourrez à nouveau effectuer des recharges ou des retraits.",
		},
		{
			Key:       "need_participate_platform_activities",
			TriggerZH: "参加 平台 活动 完成 任务",
			TriggerFR: "participer activites plateforme taches",
			AnswerZH:  "需要参加平台的活动，并完成平台的任务",
			AnswerFR:  "Besoin de participer aux activités de la plateforme et d'accomplir les tâches de la plateforme",
		},
		{
			Key:       "complete_tasks_get_rewards",
			TriggerZH: "完成 任务 获得 奖励",
			TriggerFR: "terminer taches recompenses",
			AnswerZH:  "按照游戏规则完成任务就可以获得奖励，请确保你已经完成了任务",
			AnswerFR:  "Vous pouvez obtenir des récompenses en accomplissant des tâches selon les règles du jeu. Assurez-vous d'avoir terminé les tâches.",
		},
		{
			Key:       "payment_unstable_wait",
			TriggerZH: "支付 渠道 不稳定 耐心 等待",
			TriggerFR: "canaux paiement instables patienter",
			AnswerZH:  "由于支付渠道不稳定，请耐心等待",
			AnswerFR:  "En raison de l'instabilité des canaux de paiement, veuillez patienter",
		},
		{
			Key:       "withdraw_issue_wait",
			TriggerZH: "提现 问题 卡住 等待 处理",
			TriggerFR: "probleme retrait bloque patienter traitement",
			AnswerZH:  "如果是提现问题，请耐心等待。支付渠道不稳定，很多付款都会卡住，所以请耐心等待处理",
			AnswerFR:  "S'il s'agit d'un problème de retrait, veuillez patienter. Le canal de paiement est instable et de nombreux paiements sont bloqués. Veuillez donc patienter pendant le traitement.",
		},
		{
			Key:       "transaction_delay_48h",
			TriggerZH: "交易 延迟 48 小时 等待",
			TriggerFR: "transactions retardees 48 heures",
			AnswerZH:  "由于支付渠道网络环境不稳定，导致交易有延迟，所以请耐心等待，一般这个时间周期在48小时。",
			AnswerFR:  "En raison de l'environnement réseau instable du canal de paiement, les transactions sont retardées, alors veuillez attendre patiemment. Généralement, cette période est de 48 heures.",
		},
		{
			Key:       "welcome_gamesawa",
			TriggerZH: "欢迎 gamesawa",
			TriggerFR: "bienvenue gamesawa",
			AnswerZH:  "欢迎来到gamesawa",
			AnswerFR:  "Bienvenue sur Gamesawa",
		},
		{
			Key:       "describe_issue_detail",
			TriggerZH: "详细 描述 问题",
			TriggerFR: "decrire en detail probleme",
			AnswerZH:  "请详细描述一下你遇到的问题",
			AnswerFR:  "Veuillez décrire en détail le problème que vous avez rencontré",
		},
	}
}
