package dialogue

import "fmt"

// Fixed questionnaire texts. These are part of the external contract with
// the chat surface; change them together with the client copy.
const (
	greetingMessage = "お電話ありがとうございます。保険加入のご相談ですね。\n" +
		"はじめに確認させてください。現在、病気やけがで治療中、または通院中ですか？"

	treatmentRetryMessage = "恐れ入ります。「はい」または「いいえ」でお答えください。\n" +
		"現在、病気やけがで治療中、または通院中ですか？"

	diagnosisKnowledgeQuestion = "医師から診断名（病名）を告げられていますか？"

	diagnosisKnowledgeRetryMessage = "恐れ入ります。「はい」または「いいえ」でお答えください。\n" +
		"医師から診断名（病名）を告げられていますか？"

	diagnosisInputPrompt = "診断名を教えてください。（例：胃炎、糖尿病）"

	symptomInputPrompt = "どのような症状がありますか？具体的にお聞かせください。（例：胃が痛い）"

	symptomEditPrompt = "症状をもう一度お聞かせください。（例：胃が痛い）"

	symptomFollowupPrompt = "ほかに気になる症状はございますか？あわせてお聞かせください。"

	fullyInsurableMessage = "現在、治療中や通院中のご病気・けががないとのことですので、" +
		"基本的にすべてのプランに加入可能です。\n\n" +
		"※最終的なご加入可否は、正式なお手続きの際に確認させていただきます。"

	selectionRetryMessage = "恐れ入ります。以下の選択肢からお選びください。"

	candidateSelectionSuffix = "該当する病名がありましたら選択してください。"

	proceedLabel     = "手続きに進む"
	backToListLabel  = "一覧に戻る"
	editSymptomLabel = "症状を入力し直す"

	formIntroMessage = "お手続きに必要な情報のご入力をお願いいたします。"

	completedThanksMessage = "ご入力ありがとうございました。お手続き内容を受け付けました。\n" +
		"担当者より改めてご連絡いたしますので、今しばらくお待ちください。"

	alreadyCompletedMessage = "こちらのご相談は既に完了しています。\n" +
		"新しいご相談をご希望の場合は、新しい会話を開始してください。"

	processingApologyMessage = "申し訳ございません。一時的なエラーが発生しました。もう一度お試しください。"
)

// Selection values shared with the client.
const (
	selectionYes         = "yes"
	selectionNo          = "no"
	selectionProceed     = "proceed"
	selectionBackToList  = "back_to_list"
	selectionEditSymptom = "edit_symptom"
)

func noResultMessage(diseaseName string) string {
	return fmt.Sprintf("申し訳ございません。「%s」に関する情報が見つかりませんでした。\n\n"+
		"病名を正確にご入力いただくか、症状からお伝えいただくこともできます。", diseaseName)
}

func yesNoOptions() []Option {
	return []Option{
		{Value: selectionYes, Label: "はい"},
		{Value: selectionNo, Label: "いいえ"},
	}
}

func proceedOptions() []Option {
	return []Option{{Value: selectionProceed, Label: proceedLabel}}
}
